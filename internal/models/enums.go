package models

import (
	"encoding/json"
	"fmt"
	"time"
)

type AdminLevel string

const (
	LevelGuest          AdminLevel = "convidado"
	LevelUser           AdminLevel = "user"
	LevelAdminPrincipal AdminLevel = "admin_principal"
	LevelAdminSecondary AdminLevel = "admin_secundario"
)

func (l AdminLevel) Valid() bool {
	switch l {
	case LevelGuest, LevelUser, LevelAdminPrincipal, LevelAdminSecondary:
		return true
	}
	return false
}

// UnmarshalJSON accepts the empty string for users created before levels existed.
func (l *AdminLevel) UnmarshalJSON(b []byte) error {
	return decodeEnum(b, (*string)(l), "admin_level", func(s string) bool {
		return s == "" || AdminLevel(s).Valid()
	})
}

// Profile is a named permission preset.
type Profile string

const (
	ProfileValidator Profile = "validador"
	ProfileRequester Profile = "solicitante"
	ProfileManager   Profile = "gerente"
	ProfileAdmin     Profile = "admin"
	ProfileCustom    Profile = "personalizado"
)

func (p Profile) Valid() bool {
	switch p {
	case ProfileValidator, ProfileRequester, ProfileManager, ProfileAdmin, ProfileCustom:
		return true
	}
	return false
}

func (p *Profile) UnmarshalJSON(b []byte) error {
	return decodeEnum(b, (*string)(p), "profile", func(s string) bool {
		return s == "" || Profile(s).Valid()
	})
}

// Status is the aggregate state of a validation request. It is always
// whatever the backend reports.
type Status string

const (
	StatusPending         Status = "pendente"
	StatusInReview        Status = "em_analise"
	StatusApproved        Status = "aprovado"
	StatusPartialApproved Status = "aprovado_parcial"
	StatusRejected        Status = "reprovado"
)

var AllStatuses = []Status{StatusPending, StatusInReview, StatusApproved, StatusPartialApproved, StatusRejected}

func (s Status) Valid() bool {
	for _, v := range AllStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Open reports whether the request still awaits a verdict.
func (s Status) Open() bool { return s == StatusPending || s == StatusInReview }

// Final reports whether the request reached a terminal verdict.
func (s Status) Final() bool { return s == StatusApproved || s == StatusRejected }

func (s Status) Label() string {
	switch s {
	case StatusPending:
		return "Pendente"
	case StatusInReview:
		return "Em análise"
	case StatusApproved:
		return "Aprovado"
	case StatusPartialApproved:
		return "Aprovado parcial"
	case StatusRejected:
		return "Reprovado"
	}
	return string(s)
}

func (s *Status) UnmarshalJSON(b []byte) error {
	return decodeEnum(b, (*string)(s), "status", func(v string) bool { return Status(v).Valid() })
}

// LinkStatus is the verdict on a single content link.
type LinkStatus string

const (
	LinkPending  LinkStatus = "pendente"
	LinkApproved LinkStatus = "aprovado"
	LinkRejected LinkStatus = "reprovado"
)

func (s LinkStatus) Valid() bool {
	return s == LinkPending || s == LinkApproved || s == LinkRejected
}

func (s LinkStatus) Decided() bool { return s == LinkApproved || s == LinkRejected }

// A missing or empty link status decodes as pendente, the same default a
// fresh review starts from. Any other unknown value is rejected.
func (s *LinkStatus) UnmarshalJSON(b []byte) error {
	if err := decodeEnum(b, (*string)(s), "link status", func(v string) bool {
		return v == "" || LinkStatus(v).Valid()
	}); err != nil {
		return err
	}
	if *s == "" {
		*s = LinkPending
	}
	return nil
}

type Priority string

const (
	PriorityLow    Priority = "baixa"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "alta"
	PriorityUrgent Priority = "urgente"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// SLA is the advisory turnaround window for the priority. Unknown values
// get the normal window.
func (p Priority) SLA() time.Duration {
	switch p {
	case PriorityLow:
		return 24 * time.Hour
	case PriorityHigh:
		return 6 * time.Hour
	case PriorityUrgent:
		return 2 * time.Hour
	default:
		return 12 * time.Hour
	}
}

// UnmarshalJSON maps an absent priority to normal.
func (p *Priority) UnmarshalJSON(b []byte) error {
	if err := decodeEnum(b, (*string)(p), "priority", func(v string) bool {
		return v == "" || Priority(v).Valid()
	}); err != nil {
		return err
	}
	if *p == "" {
		*p = PriorityNormal
	}
	return nil
}

type PackageType string

const (
	PackageArtwork  PackageType = "artwork"
	PackageCopy     PackageType = "texto_copy"
	PackageVideo    PackageType = "video"
	PackageDocument PackageType = "documento"
	PackageOther    PackageType = "outro"
)

func (t PackageType) Valid() bool {
	switch t {
	case PackageArtwork, PackageCopy, PackageVideo, PackageDocument, PackageOther:
		return true
	}
	return false
}

func (t *PackageType) UnmarshalJSON(b []byte) error {
	return decodeEnum(b, (*string)(t), "package type", func(v string) bool {
		return v == "" || PackageType(v).Valid()
	})
}

type InviteStatus string

const (
	InvitePending InviteStatus = "pendente"
	InviteUsed    InviteStatus = "usado"
	InviteExpired InviteStatus = "expirado"
)

func (s InviteStatus) Valid() bool {
	return s == InvitePending || s == InviteUsed || s == InviteExpired
}

func (s *InviteStatus) UnmarshalJSON(b []byte) error {
	return decodeEnum(b, (*string)(s), "invite status", func(v string) bool { return InviteStatus(v).Valid() })
}

func decodeEnum(b []byte, dst *string, name string, ok func(string) bool) error {
	var s string
	if string(b) != "null" {
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if !ok(s) {
		return fmt.Errorf("%s: unknown value %q", name, s)
	}
	*dst = s
	return nil
}
