package config

const (
	LogLevelDebug   string = "debug"
	LogLevelInfo    string = "info"
	LogLevelWarning string = "warn"
	LogLevelError   string = "error"

	LogFilePath string = "ft-raid-core/log/log_output.txt"

	Version string = "0.1.0"
)

// Geometry defaults. A real array loads these from PBR content; the
// demo CLI reads no config file and uses DefaultBlockSize as the
// default of its --block-size flag.
const (
	// SectorBytes is the smallest addressable unit the dispatcher deals in.
	SectorBytes = 512
	// SectorsPerBlock relates a logical/FT block to physical sectors.
	SectorsPerBlock = 8
	// DefaultBlockSize is the size in bytes of one logical block.
	DefaultBlockSize = SectorBytes * SectorsPerBlock

	// RAID6ParityCnt is fixed for RAID6: a P and a Q chunk, both computed
	// from parity rows of the codec's Cauchy matrix.
	RAID6ParityCnt = 2
	// MinRAID6Devices is the minimum device count CheckNumofDevsToConfigure accepts.
	MinRAID6Devices = 4

	// BufferPoolSwapThresholdPct is the percentage of total blocks the
	// producer list must exceed before TryGet() will swap it in.
	BufferPoolSwapThresholdPct = 20

	// DefaultNUMASocket is used when the caller has no NUMA topology info.
	DefaultNUMASocket = 0
)
