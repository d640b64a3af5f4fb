package types

// Action names the transition a scan requested.
type Action string

const (
	ActionCheckIn  Action = "CHECK_IN"
	ActionCheckOut Action = "CHECK_OUT"
)

// ScanRequest is what the mobile client sends after scanning a QR code.
type ScanRequest struct {
	MemberID int64  `json:"member_id"`
	QRCode   string `json:"qr_code"`
}

// ScanResponse reports the outcome of a check-in or check-out.
type ScanResponse struct {
	OK      bool           `json:"ok"`
	Action  Action         `json:"action"`
	Message string         `json:"message"`
	Error   string         `json:"error,omitempty"`
	Session *AccessSession `json:"session,omitempty"`
}

type InsideResponse struct {
	MemberID int64 `json:"member_id"`
	Inside   bool  `json:"inside"`
}

type OccupancyResponse struct {
	Count      int64  `json:"count"`
	ServerTime string `json:"server_time"`
}

type SessionListResponse struct {
	Count    int             `json:"count"`
	Sessions []AccessSession `json:"sessions"`
}

type CodeResponse struct {
	Code string `json:"code"`
}
