package models

// CampaignStatus is the lifecycle state of a campaign
type CampaignStatus string

const (
	CampaignStatusDraft   CampaignStatus = "draft"
	CampaignStatusSending CampaignStatus = "sending"
	CampaignStatusSent    CampaignStatus = "sent"
	CampaignStatusPartial CampaignStatus = "partial"
	CampaignStatusFailed  CampaignStatus = "failed"
)

// AudienceType selects how recipients are resolved at send time
type AudienceType string

const (
	AudienceAllContacts AudienceType = "all_contacts"
	AudienceCustom      AudienceType = "custom"
)

// SendStatus is the outcome of a single EmailSend row
type SendStatus string

const (
	SendStatusQueued SendStatus = "queued"
	SendStatusSent   SendStatus = "sent"
	SendStatusFailed SendStatus = "failed"
)

// IsValid checks if the CampaignStatus is valid
func (s CampaignStatus) IsValid() bool {
	switch s {
	case CampaignStatusDraft, CampaignStatusSending, CampaignStatusSent, CampaignStatusPartial, CampaignStatusFailed:
		return true
	}
	return false
}

// CanSend reports whether a send may be triggered from this status.
// Terminal-but-not-sent campaigns may be sent again, starting a new cycle.
func (s CampaignStatus) CanSend() bool {
	return s != CampaignStatusSending && s != CampaignStatusSent
}

// IsValid checks if the AudienceType is valid
func (a AudienceType) IsValid() bool {
	switch a {
	case AudienceAllContacts, AudienceCustom:
		return true
	}
	return false
}

// IsTerminal reports whether the send row has been attempted
func (s SendStatus) IsTerminal() bool {
	return s == SendStatusSent || s == SendStatusFailed
}
