package protocol

type MessageType uint16

const (
	MsgPing               MessageType = 0x0001
	MsgPong               MessageType = 0x0002
	MsgRegister           MessageType = 0x0010
	MsgRegisterAck        MessageType = 0x0011
	MsgCreateTransfer     MessageType = 0x0020
	MsgTransferCreated    MessageType = 0x0021
	MsgStateChanged       MessageType = 0x0030
	MsgHandleImport       MessageType = 0x0040
	MsgHandleExport       MessageType = 0x0041
	MsgHandleShare        MessageType = 0x0042
	MsgKnownPeersRequest  MessageType = 0x0050
	MsgKnownPeersResponse MessageType = 0x0051
	MsgDefaultPeerRequest MessageType = 0x0052
	MsgDefaultPeerReply   MessageType = 0x0053
	MsgError              MessageType = 0x00FF
)

func (t MessageType) String() string {
	switch t {
	case MsgPing:
		return "PING"
	case MsgPong:
		return "PONG"
	case MsgRegister:
		return "REGISTER"
	case MsgRegisterAck:
		return "REGISTER_ACK"
	case MsgCreateTransfer:
		return "CREATE_TRANSFER"
	case MsgTransferCreated:
		return "TRANSFER_CREATED"
	case MsgStateChanged:
		return "STATE_CHANGED"
	case MsgHandleImport:
		return "HANDLE_IMPORT"
	case MsgHandleExport:
		return "HANDLE_EXPORT"
	case MsgHandleShare:
		return "HANDLE_SHARE"
	case MsgKnownPeersRequest:
		return "KNOWN_PEERS_REQ"
	case MsgKnownPeersResponse:
		return "KNOWN_PEERS_RES"
	case MsgDefaultPeerRequest:
		return "DEFAULT_PEER_REQ"
	case MsgDefaultPeerReply:
		return "DEFAULT_PEER_RES"
	case MsgError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

type ErrorCode uint16

const (
	ErrUnknown          ErrorCode = 0x0000
	ErrInvalidMsg       ErrorCode = 0x0001
	ErrPeerNotFound     ErrorCode = 0x0002
	ErrTransferNotFound ErrorCode = 0x0003
	ErrNotRegistered    ErrorCode = 0x0004
	ErrInternal         ErrorCode = 0x00FF
)

func (e ErrorCode) String() string {
	switch e {
	case ErrInvalidMsg:
		return "INVALID_MESSAGE"
	case ErrPeerNotFound:
		return "PEER_NOT_FOUND"
	case ErrTransferNotFound:
		return "TRANSFER_NOT_FOUND"
	case ErrNotRegistered:
		return "NOT_REGISTERED"
	case ErrInternal:
		return "INTERNAL_ERROR"
	case ErrUnknown:
		return "UNKNOWN"
	default:
		return "UNKNOWN"
	}
}
