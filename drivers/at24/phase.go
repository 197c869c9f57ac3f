package at24

// Phase is the position of the engine in a random-read transaction.
//
//	Idle --BeginWrite--> AddressedWrite --SendByte--> WordAddrSent
//	WordAddrSent --BeginRead--> AddressedRead
//	AddressedRead --ReceiveNext--> AddressedRead
//	AddressedRead --ReceiveLast--> StopPending --AwaitStop--> Idle
//
// Stop closes a transaction early from any addressed phase.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseAddressedWrite
	PhaseWordAddrSent
	PhaseAddressedRead
	PhaseStopPending
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAddressedWrite:
		return "addressed_write"
	case PhaseWordAddrSent:
		return "word_addr_sent"
	case PhaseAddressedRead:
		return "addressed_read"
	case PhaseStopPending:
		return "stop_pending"
	}
	return "unknown"
}
