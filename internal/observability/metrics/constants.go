package metrics

// Operation names passed to Recorder.
const (
	// OpPrediction is one model inference.
	OpPrediction = "prediction"
	// OpModelLoad is a model (re)load.
	OpModelLoad = "model_load"
	// OpExtraction is feature extraction for one recording.
	OpExtraction = "extraction"
	// OpDecode is audio decoding for one recording.
	OpDecode = "decode"
	// OpJob is one classification job end to end.
	OpJob = "job"
	// OpPublish is one MQTT publish.
	OpPublish = "publish"
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Histogram bucket layouts.
const (
	// BucketStart1ms starts a 1ms..~4s exponential layout.
	BucketStart1ms = 0.001
	// BucketStart10ms starts a 10ms..~40s exponential layout.
	BucketStart10ms = 0.01
	// BucketStart64B starts a byte-size layout.
	BucketStart64B = 64.0

	BucketFactor2 = 2
	BucketCount10 = 10
	BucketCount12 = 12
)
