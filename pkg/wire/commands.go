package wire

// Command identifies a Channel Access request or response frame.
type Command uint16

// Commands the core produces or consumes, per the CA v4.13 wire protocol.
const (
	CmdVersion       Command = 0
	CmdEventAdd      Command = 1
	CmdEventCancel   Command = 2
	CmdRead          Command = 3 // legacy
	CmdWrite         Command = 4
	CmdSearch        Command = 6
	CmdEventsOff     Command = 8
	CmdEventsOn      Command = 9
	CmdReadSync      Command = 11
	CmdReadNotify    Command = 15
	CmdCreateChan    Command = 18
	CmdWriteNotify   Command = 19
	CmdClientName    Command = 20
	CmdHostName      Command = 21
	CmdAccessRights  Command = 22
	CmdEcho          Command = 23
	CmdCreateChFail  Command = 26
	CmdServerDisconn Command = 27
)

// String returns a human-readable command name, used for logging.
func (c Command) String() string {
	switch c {
	case CmdVersion:
		return "VERSION"
	case CmdEventAdd:
		return "EVENT_ADD"
	case CmdEventCancel:
		return "EVENT_CANCEL"
	case CmdRead:
		return "READ"
	case CmdWrite:
		return "WRITE"
	case CmdSearch:
		return "SEARCH"
	case CmdEventsOff:
		return "EVENTS_OFF"
	case CmdEventsOn:
		return "EVENTS_ON"
	case CmdReadSync:
		return "READ_SYNC"
	case CmdReadNotify:
		return "READ_NOTIFY"
	case CmdCreateChan:
		return "CREATE_CHANNEL"
	case CmdWriteNotify:
		return "WRITE_NOTIFY"
	case CmdClientName:
		return "CLIENT_NAME"
	case CmdHostName:
		return "HOST_NAME"
	case CmdAccessRights:
		return "ACCESS_RIGHTS"
	case CmdEcho:
		return "ECHO"
	case CmdCreateChFail:
		return "CREATE_CH_FAIL"
	case CmdServerDisconn:
		return "SERVER_DISCONN"
	default:
		return "UNKNOWN"
	}
}
