// Package email delivers transactional mail over the tenant's SMTP server.
package email

import "context"

// Sender delivers the notification emails this system sends.
type Sender interface {
	SendLeadAssignedEmail(ctx context.Context, toEmail string, data LeadAssignedData) error
	SendSweepReportEmail(ctx context.Context, toEmail string, data SweepReportData) error
}

// NopSender discards all mail. Used when email delivery is disabled.
type NopSender struct{}

func (NopSender) SendLeadAssignedEmail(context.Context, string, LeadAssignedData) error { return nil }
func (NopSender) SendSweepReportEmail(context.Context, string, SweepReportData) error   { return nil }

var (
	_ Sender = (*SMTPSender)(nil)
	_ Sender = NopSender{}
)
