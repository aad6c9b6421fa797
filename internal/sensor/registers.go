package sensor

// Register map for the PM2.5/PM10 particulate sensor. All concentration and
// particle-count registers hold big-endian 16-bit values.
const (
	RegPowerMode byte = 0x01 // 1-byte sleep/wake command

	RegPM1p0Standard byte = 0x05 // μg/m³, standard particle
	RegPM2p5Standard byte = 0x07
	RegPM10Standard  byte = 0x09

	RegPM1p0Atmospheric byte = 0x0B // μg/m³, under atmospheric environment
	RegPM2p5Atmospheric byte = 0x0D
	RegPM10Atmospheric  byte = 0x0F

	RegParticles0p3 byte = 0x11 // count per 0.1 L air, ≥0.3μm
	RegParticles0p5 byte = 0x13
	RegParticles1p0 byte = 0x15
	RegParticles2p5 byte = 0x17
	RegParticles5p0 byte = 0x19
	RegParticles10  byte = 0x1B

	RegVersion byte = 0x1D // gain/version, used as the connection probe
)

const (
	PowerModeSleep byte = 0x00
	PowerModeWake  byte = 0x01
)

// DefaultAddress is the sensor's fixed bus address.
const DefaultAddress uint16 = 0x19

// ValidRegisters is the transport allow-list.
func ValidRegisters() []byte {
	return []byte{
		RegPowerMode,
		RegPM1p0Standard, RegPM2p5Standard, RegPM10Standard,
		RegPM1p0Atmospheric, RegPM2p5Atmospheric, RegPM10Atmospheric,
		RegParticles0p3, RegParticles0p5, RegParticles1p0,
		RegParticles2p5, RegParticles5p0, RegParticles10,
		RegVersion,
	}
}
