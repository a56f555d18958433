package analysis

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/Demr1on/batmap-app/internal/classifier"
	"github.com/Demr1on/batmap-app/internal/errors"
	"github.com/Demr1on/batmap-app/internal/features"
	"github.com/Demr1on/batmap-app/internal/logger"
)

// Output formats accepted by WriteReports.
const (
	OutputTable = "table"
	OutputCSV   = "csv"
	OutputJSON  = "json"
)

// audioExtensions are the file types picked up when walking a directory.
var audioExtensions = []string{".wav", ".flac"}

// FileReport is the outcome for one recording on disk.
type FileReport struct {
	Path       string             `json:"path"`
	SampleRate int                `json:"sampleRate,omitempty"`
	Duration   time.Duration      `json:"-"`
	Species    classifier.Species `json:"species,omitzero"`
	Result     *classifier.Result `json:"result,omitempty"`
	Features   *features.Vector   `json:"features,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// FileAnalysis classifies every recording under paths and writes the reports
// to w. A file that fails is reported and does not stop the others.
func FileAnalysis(ctx context.Context, p *Pipeline, paths []string, w io.Writer, format string, withFeatures bool) error {
	files, err := CollectAudioFiles(paths)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errors.Newf("no .wav or .flac files found").
			Component("analysis").
			Category(errors.CategoryValidation).
			Context("paths", strings.Join(paths, ",")).
			Build()
	}

	reports := make([]FileReport, 0, len(files))
	for _, path := range files {
		if ctx.Err() != nil {
			return ErrAnalysisCanceled
		}
		reports = append(reports, p.AnalyzeFile(ctx, path, withFeatures))
	}
	return WriteReports(w, format, reports)
}

// AnalyzeFile decodes and classifies one file. Errors are recorded in the
// report.
func (p *Pipeline) AnalyzeFile(ctx context.Context, path string, withFeatures bool) FileReport {
	report := FileReport{Path: path}
	start := time.Now()

	if err := validateAudioFile(path); err != nil {
		report.Error = err.Error()
		return report
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is a user-supplied input file
	if err != nil {
		report.Error = err.Error()
		return report
	}
	sig, err := p.Decode(data)
	if err != nil {
		report.Error = err.Error()
		return report
	}
	report.SampleRate = sig.SampleRate()
	report.Duration = sig.Duration()

	vec, res, err := p.Analyze(ctx, sig)
	if withFeatures {
		report.Features = vec
	}
	if err != nil {
		report.Error = err.Error()
		p.log.Warn("file analysis failed", logger.String("path", path), logger.Error(err))
		return report
	}
	report.Result = res
	report.Species = classifier.Lookup(res.Label)

	p.log.Info("file analyzed",
		logger.String("file", truncateFilename(path)),
		logger.String("label", res.Label),
		logger.String("confidence", string(res.Confidence)),
		logger.Duration("elapsed", time.Since(start)))
	return report
}

// CollectAudioFiles expands directories to the audio files they contain.
// Explicit file arguments are kept regardless of extension.
func CollectAudioFiles(paths []string) ([]string, error) {
	var files []string
	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, errors.New(err).
				Component("analysis").
				Category(errors.CategoryFileIO).
				Context("path", root).
				Build()
		}
		if !info.IsDir() {
			files = append(files, root)
			continue
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && slices.Contains(audioExtensions, strings.ToLower(filepath.Ext(path))) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, errors.New(err).
				Component("analysis").
				Category(errors.CategoryFileIO).
				Context("path", root).
				Build()
		}
	}
	return files, nil
}

// validateAudioFile checks that path is a non-empty regular file.
func validateAudioFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("error accessing file %s: %w", filepath.Base(path), err)
	}
	if info.IsDir() {
		return fmt.Errorf("the path %s is a directory, not a file", filepath.Base(path))
	}
	if info.Size() == 0 {
		return fmt.Errorf("file %s is empty (0 bytes)", filepath.Base(path))
	}
	return nil
}

func truncateFilename(path string) string {
	filename := filepath.Base(path)
	if len(filename) > 30 {
		return filename[:27] + "..."
	}
	return filename
}

// WriteReports renders reports as a table, CSV or JSON lines.
func WriteReports(w io.Writer, format string, reports []FileReport) error {
	switch format {
	case "", OutputTable:
		return writeTable(w, reports)
	case OutputCSV:
		return writeCSV(w, reports)
	case OutputJSON:
		enc := json.NewEncoder(w)
		for i := range reports {
			if err := enc.Encode(&reports[i]); err != nil {
				return fmt.Errorf("failed to encode report for %s: %w", reports[i].Path, err)
			}
		}
		return nil
	default:
		return errors.Newf("unknown output format %q", format).
			Component("analysis").
			Category(errors.CategoryValidation).
			Build()
	}
}

func writeTable(w io.Writer, reports []FileReport) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tCLASS\tSPECIES\tPROBABILITY\tCONFIDENCE\tDURATION")
	for i := range reports {
		r := &reports[i]
		if r.Result == nil {
			fmt.Fprintf(tw, "%s\t-\t-\t-\terror\t%s\n", truncateFilename(r.Path), r.Error)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.3f\t%s\t%s\n",
			truncateFilename(r.Path),
			r.Result.Label,
			speciesName(r.Species),
			r.Result.Probability,
			r.Result.Confidence,
			r.Duration.Round(time.Millisecond))
	}
	return tw.Flush()
}

func writeCSV(w io.Writer, reports []FileReport) error {
	cw := csv.NewWriter(w)
	header := []string{"path", "className", "scientificName", "probability", "confidence", "sampleRate", "durationMs", "error"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for i := range reports {
		r := &reports[i]
		row := []string{r.Path, "", "", "", "", strconv.Itoa(r.SampleRate), strconv.FormatInt(r.Duration.Milliseconds(), 10), r.Error}
		if r.Result != nil {
			row[1] = r.Result.Label
			row[2] = r.Species.ScientificName
			row[3] = strconv.FormatFloat(r.Result.Probability, 'f', 4, 64)
			row[4] = string(r.Result.Confidence)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func speciesName(s classifier.Species) string {
	if s.ScientificName == "" {
		return s.CommonName
	}
	return s.CommonName + " (" + s.ScientificName + ")"
}
