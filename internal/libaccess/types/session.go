package types

import "time"

// AccessMethod identifies how an access event was captured.
type AccessMethod string

const (
	AccessMethodQRMobile AccessMethod = "QR_MOBILE"
)

// AccessSession is one visit of a member to the library: opened at check-in,
// closed at check-out. ExitTime is nil while the member is inside.
type AccessSession struct {
	ID            int64        `json:"id"`
	MemberID      int64        `json:"member_id"`
	MemberName    string       `json:"member_name,omitempty"`
	MemberSurname string       `json:"member_surname,omitempty"`
	EntryTime     time.Time    `json:"entry_time"`
	ExitTime      *time.Time   `json:"exit_time"`
	QRCode        string       `json:"qr_code"`
	ExitQRCode    string       `json:"exit_qr_code,omitempty"`
	AccessMethod  AccessMethod `json:"access_method"`
	Active        bool         `json:"is_active"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// Open reports whether the member is still inside.
func (s AccessSession) Open() bool { return s.ExitTime == nil }

// Member is the display view of a library member, owned by the member directory.
type Member struct {
	MemberID int64  `json:"member_id" yaml:"member_id"`
	Name     string `json:"name" yaml:"name"`
	Surname  string `json:"surname" yaml:"surname"`
}
