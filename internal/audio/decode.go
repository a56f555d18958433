package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/wav"
	"github.com/tphakala/flac"

	"github.com/Demr1on/batmap-app/internal/errors"
	"github.com/Demr1on/batmap-app/internal/logger"
)

// ErrDecode is wrapped by every error returned from the decoders.
var ErrDecode = errors.NewStd("audio decode failed")

// Format identifies a container recognised by Decode.
type Format string

const (
	FormatUnknown Format = "unknown"
	FormatWAV     Format = "wav"
	FormatFLAC    Format = "flac"
)

// wavFormatPCM is the WAVE_FORMAT_PCM tag; float and compressed WAV are not
// supported.
const wavFormatPCM = 1

// DetectFormat sniffs the container from the leading magic bytes.
func DetectFormat(data []byte) Format {
	switch {
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return FormatWAV
	case len(data) >= 4 && string(data[0:4]) == "fLaC":
		return FormatFLAC
	default:
		return FormatUnknown
	}
}

// Decode turns an encoded WAV or FLAC payload into a mono Signal. Only the
// first channel of multi-channel audio is used.
func Decode(data []byte) (Signal, error) {
	switch DetectFormat(data) {
	case FormatWAV:
		return decodeWAV(data)
	case FormatFLAC:
		return decodeFLAC(data)
	default:
		return Signal{}, decodeError(fmt.Errorf("unrecognised audio container"), FormatUnknown, len(data))
	}
}

// DecodeFile reads and decodes the file at path.
func DecodeFile(path string) (Signal, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Signal{}, errors.New(fmt.Errorf("reading audio file: %w", err)).
			Component("audio").
			Category(errors.CategoryFileIO).
			Build()
	}
	return Decode(data)
}

func decodeWAV(data []byte) (Signal, error) {
	decoder := wav.NewDecoder(bytes.NewReader(data))
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return Signal{}, decodeError(fmt.Errorf("invalid WAV header"), FormatWAV, len(data))
	}
	if decoder.WavAudioFormat != wavFormatPCM {
		return Signal{}, decodeError(fmt.Errorf("unsupported WAV audio format %d", decoder.WavAudioFormat), FormatWAV, len(data))
	}

	channels := int(decoder.NumChans)
	bitDepth := int(decoder.BitDepth)
	if channels < 1 {
		return Signal{}, decodeError(fmt.Errorf("invalid channel count %d", channels), FormatWAV, len(data))
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return Signal{}, decodeError(fmt.Errorf("reading PCM data: %w", err), FormatWAV, len(data))
	}

	convert, err := intSampleConverter(bitDepth, true)
	if err != nil {
		return Signal{}, decodeError(err, FormatWAV, len(data))
	}

	frames := len(buf.Data) / channels
	samples := make([]float64, frames)
	for i := range frames {
		samples[i] = convert(buf.Data[i*channels])
	}

	GetLogger().Debug("decoded WAV payload",
		logger.Int("sample_rate", int(decoder.SampleRate)),
		logger.Int("bit_depth", bitDepth),
		logger.Int("channels", channels),
		logger.Int("samples", frames))

	sig, err := NewSignal(samples, int(decoder.SampleRate))
	if err != nil {
		return Signal{}, decodeError(err, FormatWAV, len(data))
	}
	return sig, nil
}

func decodeFLAC(data []byte) (Signal, error) {
	decoder, err := flac.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return Signal{}, decodeError(fmt.Errorf("reading FLAC stream info: %w", err), FormatFLAC, len(data))
	}

	channels := decoder.NChannels
	bitDepth := decoder.BitsPerSample
	if channels < 1 {
		return Signal{}, decodeError(fmt.Errorf("invalid channel count %d", channels), FormatFLAC, len(data))
	}
	convert, err := intSampleConverter(bitDepth, false)
	if err != nil {
		return Signal{}, decodeError(err, FormatFLAC, len(data))
	}

	bytesPerSample := (bitDepth + 7) / 8
	stride := bytesPerSample * channels
	samples := make([]float64, 0, max(int(decoder.TotalSamples), 0))

	for {
		frame, err := decoder.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Signal{}, decodeError(fmt.Errorf("decoding FLAC frame: %w", err), FormatFLAC, len(data))
		}
		for i := 0; i+stride <= len(frame); i += stride {
			samples = append(samples, convert(littleEndianInt(frame[i:i+bytesPerSample])))
		}
	}

	GetLogger().Debug("decoded FLAC payload",
		logger.Int("sample_rate", decoder.SampleRate),
		logger.Int("bit_depth", bitDepth),
		logger.Int("channels", channels),
		logger.Int("samples", len(samples)))

	sig, err := NewSignal(samples, decoder.SampleRate)
	if err != nil {
		return Signal{}, decodeError(err, FormatFLAC, len(data))
	}
	return sig, nil
}

// intSampleConverter maps integer PCM of the given depth to [-1, 1).
// WAV stores 8-bit PCM unsigned, FLAC stores it signed.
func intSampleConverter(bitDepth int, unsigned8 bool) (func(int) float64, error) {
	switch bitDepth {
	case 8:
		if unsigned8 {
			return func(v int) float64 { return float64(v-128) / 128 }, nil
		}
		return func(v int) float64 { return float64(v) / 128 }, nil
	case 16, 24, 32:
		divisor := float64(int64(1) << (bitDepth - 1))
		return func(v int) float64 { return float64(v) / divisor }, nil
	default:
		return nil, fmt.Errorf("unsupported bit depth: %d", bitDepth)
	}
}

// littleEndianInt reads a signed little-endian integer of 1 to 4 bytes.
func littleEndianInt(b []byte) int {
	switch len(b) {
	case 1:
		return int(int8(b[0]))
	case 2:
		return int(int16(binary.LittleEndian.Uint16(b)))
	case 3:
		v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
		if v&0x800000 != 0 {
			v |= ^0xFFFFFF
		}
		return int(v)
	default:
		return int(int32(binary.LittleEndian.Uint32(b)))
	}
}

func decodeError(cause error, format Format, size int) error {
	return errors.New(fmt.Errorf("%w: %w", ErrDecode, cause)).
		Component("audio").
		Category(errors.CategoryDecode).
		Context("format", string(format)).
		Context("payload_bytes", size).
		Build()
}
