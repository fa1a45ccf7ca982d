package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrz1836/postmark"
)

// PostmarkConfig configures the Postmark notifier.
type PostmarkConfig struct {
	ServerToken   string
	AccountToken  string
	From          string
	MessageStream string
}

// Sender is the subset of the Postmark client the notifier uses.
type Sender interface {
	SendEmail(ctx context.Context, email postmark.Email) (postmark.EmailResponse, error)
}

// Postmark sends notifications as transactional emails.
type Postmark struct {
	client Sender
	cfg    PostmarkConfig
}

func NewPostmark(cfg PostmarkConfig) (*Postmark, error) {
	if cfg.ServerToken == "" || cfg.AccountToken == "" {
		return nil, fmt.Errorf("%w: postmark server and account tokens are required", ErrInvalidConfig)
	}
	return NewPostmarkWithSender(postmark.NewClient(cfg.ServerToken, cfg.AccountToken), cfg)
}

// NewPostmarkWithSender builds the notifier on an existing client.
func NewPostmarkWithSender(client Sender, cfg PostmarkConfig) (*Postmark, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: nil postmark client", ErrInvalidConfig)
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("%w: sender address is required", ErrInvalidConfig)
	}
	return &Postmark{client: client, cfg: cfg}, nil
}

func (p *Postmark) Notify(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	resp, err := p.client.SendEmail(ctx, postmark.Email{
		From:          p.cfg.From,
		To:            msg.Email,
		Subject:       subject(msg),
		TextBody:      body(msg),
		Tag:           string(msg.Kind),
		MessageStream: p.cfg.MessageStream,
		Metadata:      map[string]string{"account_id": msg.AccountID.String()},
	})
	if err != nil {
		return errors.Join(ErrFailedToSend, err)
	}
	if resp.ErrorCode > 0 {
		return errors.Join(ErrFailedToSend, fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message))
	}
	return nil
}
