// Package consts defines application-wide constants.
package consts

import "time"

const (
	// DefaultDelay is the clip delay used when the provider sends null or 0.
	// Its magnitude is the clip duration in seconds.
	DefaultDelay = -60.0
	// DefaultPoolSize is the maximum number of clips downloaded at once.
	DefaultPoolSize = 5
	// DefaultContainer is the output extension when no custom format is chosen.
	DefaultContainer = "mp4"
	// DefaultDisplayInterval is how often the progress block is redrawn.
	DefaultDisplayInterval = 200 * time.Millisecond
	// DefaultAPITimeout is the timeout for one metadata request.
	DefaultAPITimeout = 15 * time.Second
	// TopFormats is how many formats the catalog keeps per source.
	TopFormats = 5
	// ClipsDir is the default root for downloaded clips.
	ClipsDir = "clips"
)

// Progress table statuses.
const (
	// StatusPending is shown for slots that have not reported yet.
	StatusPending = "0%"
	// StatusDone is shown once a clip finished successfully.
	StatusDone = "100%"
	// StatusExists is shown when the output file is already on disk.
	StatusExists = "already exists"
	// StatusFailedPrefix starts every failure status.
	StatusFailedPrefix = "failed: "
)

// Engine identifiers.
const (
	// EngineYTdlp is the yt-dlp engine identifier.
	EngineYTdlp = "ytdlp"
	// EngineMock is the mock engine identifier for testing.
	EngineMock = "mock"
)

// HTTP response messages of the metrics listener.
const (
	// RespReady is returned by the readiness probe.
	RespReady = "ready"
	// RespNoBatches is returned before the first batch finished.
	RespNoBatches = "no batches"
	// RespBatchRetrieved is returned with the latest batch summary.
	RespBatchRetrieved = "batch retrieved"
)
