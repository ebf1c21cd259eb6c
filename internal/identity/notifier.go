package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
)

// ResetMessage descreve um pedido de redefinição de senha a ser entregue.
type ResetMessage struct {
	Email string `json:"email"`
	Token string `json:"token"`
	Link  string `json:"link,omitempty"`
}

// ResetNotifier entrega o link de redefinição ao usuário.
type ResetNotifier interface {
	NotifyReset(ctx context.Context, msg ResetMessage) error
}

// WebhookNotifier publica o pedido em um webhook (serviço de e-mail, automação).
type WebhookNotifier struct {
	webhookURL string
	linkBase   string
	client     *http.Client
}

// NewWebhookNotifier devolve nil quando a URL não foi configurada.
func NewWebhookNotifier(webhookURL, linkBase string) *WebhookNotifier {
	if webhookURL == "" {
		return nil
	}
	return &WebhookNotifier{
		webhookURL: webhookURL,
		linkBase:   linkBase,
		client:     &http.Client{Timeout: 5 * time.Second},
	}
}

func (n *WebhookNotifier) NotifyReset(ctx context.Context, msg ResetMessage) error {
	if n == nil || n.webhookURL == "" {
		return errors.New("webhook de redefinição não configurado")
	}
	msg.Link = resetLink(n.linkBase, msg.Token)

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return errors.New("envio da redefinição falhou")
	}
	return nil
}

// LogNotifier apenas registra o pedido; usado em desenvolvimento.
type LogNotifier struct {
	LinkBase string
}

func (n LogNotifier) NotifyReset(ctx context.Context, msg ResetMessage) error {
	log.Info().Str("email", msg.Email).Str("link", resetLink(n.LinkBase, msg.Token)).Msg("redefinição de senha solicitada")
	return nil
}

func resetLink(base, token string) string {
	if base == "" {
		return ""
	}
	u, err := url.Parse(base)
	if err != nil {
		return ""
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}
