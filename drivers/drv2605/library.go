package drv2605

// Library waveform ids used by the haptics backend. Names follow the
// datasheet's effect list.
const (
	StrongClick100      uint8 = 1
	StrongClick60       uint8 = 2
	StrongClick30       uint8 = 3
	SharpClick100       uint8 = 4
	SharpClick60        uint8 = 5
	SharpClick30        uint8 = 6
	SoftBump100         uint8 = 7
	SoftBump60          uint8 = 8
	SoftBump30          uint8 = 9
	DoubleClick100      uint8 = 10
	DoubleClick60       uint8 = 11
	TripleClick100      uint8 = 12
	SoftFuzz60          uint8 = 13
	StrongBuzz100       uint8 = 14
	Alert750ms          uint8 = 15
	Alert1000ms         uint8 = 16
	StrongClick1        uint8 = 17
	SharpTick1          uint8 = 24
	SharpTick2          uint8 = 25
	SharpTick3          uint8 = 26
	Buzz1               uint8 = 47
	PulsingStrong1      uint8 = 52
	RampDownShortSharp1 uint8 = 75
	RampUpLongSmooth1   uint8 = 82
	RampUpShortSharp1   uint8 = 88
)
