package traffic

// ModeType controls interaction pacing: Human sessions simulate pointer
// movement, scrolling and realistic delays, Bot sessions run with minimal
// pauses
type ModeType string

const (
	ModeHuman ModeType = "Human"
	ModeBot   ModeType = "Bot"
)

// IsValid checks if the ModeType is a valid value
func (m ModeType) IsValid() bool {
	return m == ModeHuman || m == ModeBot
}

// String returns the string representation of ModeType
func (m ModeType) String() string {
	return string(m)
}

// NetworkType selects the network condition applied to capability contexts
type NetworkType string

const (
	NetworkOnline  NetworkType = "Online"
	NetworkOffline NetworkType = "Offline"
)

// IsValid checks if the NetworkType is a valid value
func (n NetworkType) IsValid() bool {
	return n == NetworkOnline || n == NetworkOffline
}

// String returns the string representation of NetworkType
func (n NetworkType) String() string {
	return string(n)
}

// ProfileKind distinguishes fresh visitor identities from reused ones
type ProfileKind string

const (
	ProfileNew       ProfileKind = "New"
	ProfileReturning ProfileKind = "Returning"
)

// String returns the string representation of ProfileKind
func (p ProfileKind) String() string {
	return string(p)
}
