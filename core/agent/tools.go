package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/koscakluka/jarvis-voice/core/advisor"
	"github.com/koscakluka/jarvis-voice/core/llms"
)

type notifyAdvisorArgs struct {
	Type    string `json:"type,omitempty" jsonschema:"enum=info,enum=warning,enum=action,enum=success,description=Kind of notification. Defaults to action."`
	Title   string `json:"title" jsonschema:"description=Short headline for the notification."`
	Message string `json:"message" jsonschema:"description=Detailed text explaining what needs attention."`
}

type draftEmailArgs struct {
	ClientName string `json:"client_name,omitempty" jsonschema:"description=Name of the client the email relates to."`
	To         string `json:"to" jsonschema:"description=Full recipient such as 'David Chen <david.chen@example.com>'."`
	Subject    string `json:"subject" jsonschema:"description=Email subject line."`
	Body       string `json:"body" jsonschema:"description=Full email body text."`
}

var errNoSink = errors.New("no sink configured")

func (a *Agent) buildTools() []llms.Tool {
	return []llms.Tool{
		llms.NewTool("notify_advisor",
			"Send an important notification to the advisor's dashboard.",
			func(ctx context.Context, args notifyAdvisorArgs) (string, error) {
				if a.notifications == nil {
					return "", fmt.Errorf("notify_advisor: %w", errNoSink)
				}
				n, err := a.notifications.Notify(ctx, advisor.Notification{
					Type:    advisor.NotificationType(args.Type),
					Title:   args.Title,
					Message: args.Message,
				})
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("Notification sent to dashboard: %s", n.Title), nil
			}),
		llms.NewTool("draft_email",
			"Create a draft email for the advisor to review before sending.",
			func(ctx context.Context, args draftEmailArgs) (string, error) {
				if a.drafts == nil {
					return "", fmt.Errorf("draft_email: %w", errNoSink)
				}
				d, err := a.drafts.DraftEmail(ctx, advisor.EmailDraft{
					ClientName: args.ClientName,
					To:         args.To,
					Subject:    args.Subject,
					Body:       args.Body,
				})
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("Draft email created for advisor approval (id=%s).", d.ID), nil
			}),
	}
}
