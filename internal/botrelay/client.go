// Package botrelay: HTTP-клиент бота: ответы оператора гражданину и прокси фото.
package botrelay

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/psds-microservice/triage-service/internal/errs"
)

// Лимит тела ответа бота, которое попадает в текст ошибки.
const maxErrorBody = 4 << 10

// Лимит размера проксируемого изображения.
const maxImageSize = 20 << 20

// File: вложение ответа оператора.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// ReplyRequest: тело POST /api/reply.
type ReplyRequest struct {
	TicketID string
	Text     string
	File     *File
	// IdempotencyKey передаётся заголовком Idempotency-Key; пусто: генерируется.
	IdempotencyKey string
}

type Image struct {
	ContentType string
	Data        []byte
}

// Client обращается к HTTP-эндпоинту бота. Адрес бота читается при каждом
// вызове: оператор может сменить его во время работы.
type Client struct {
	baseURL    func() string
	httpClient *http.Client
}

// NewClient возвращает клиент. Если baseURL возвращает пустую строку,
// вызовы завершаются ошибкой errs.KindNotConfigured.
func NewClient(baseURL func() string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) base(op string) (string, error) {
	b := ""
	if c.baseURL != nil {
		b = strings.TrimSpace(c.baseURL())
	}
	if b == "" {
		return "", errs.New(errs.KindNotConfigured, op, "bot base url is not configured")
	}
	return strings.TrimRight(b, "/"), nil
}

// Reply отправляет ответ оператора через бота. Ответ не 2xx возвращается
// как errs.KindRelay с телом ответа бота в сообщении.
func (c *Client) Reply(ctx context.Context, r ReplyRequest) (string, error) {
	const op = "bot reply"
	base, err := c.base(op)
	if err != nil {
		return "", err
	}
	if r.TicketID == "" {
		return "", errs.Validation("ticket_id is required")
	}
	key := r.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	}

	body, contentType, err := encodeReply(r)
	if err != nil {
		return "", errs.Wrap(errs.KindRelay, op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/api/reply", body)
	if err != nil {
		return "", errs.Wrap(errs.KindRelay, op, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Idempotency-Key", key)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errs.Wrap(errs.KindRelay, op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := strings.TrimSpace(string(text))
		if msg == "" {
			msg = resp.Status
		}
		return "", &errs.Error{Kind: errs.KindRelay, Op: op, Msg: msg}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return key, nil
}

func encodeReply(r ReplyRequest) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("ticket_id", r.TicketID); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("text", r.Text); err != nil {
		return nil, "", err
	}
	if r.File != nil {
		name := r.File.Name
		if name == "" {
			name = "image.jpg"
		}
		part, err := w.CreateFormFile("file", name)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(r.File.Data); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// Ping проверяет, что бот отвечает на GET /.
func (c *Client) Ping(ctx context.Context) error {
	const op = "bot ping"
	base, err := c.base(op)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/", nil)
	if err != nil {
		return errs.Wrap(errs.KindRelay, op, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errs.Wrap(errs.KindRelay, op, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	if resp.StatusCode != http.StatusOK {
		return &errs.Error{Kind: errs.KindRelay, Op: op, Msg: fmt.Sprintf("bot answered %s", resp.Status)}
	}
	return nil
}

// FetchImage скачивает фото через прокси бота GET /images/{ref}.
func (c *Client) FetchImage(ctx context.Context, ref string) (*Image, error) {
	const op = "bot image"
	base, err := c.base(op)
	if err != nil {
		return nil, err
	}
	if ref == "" {
		return nil, errs.Validation("image reference is empty")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/images/"+url.PathEscape(ref), nil)
	if err != nil {
		return nil, errs.Wrap(errs.KindRelay, op, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.KindRelay, op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &errs.Error{Kind: errs.KindRelay, Op: op, Msg: fmt.Sprintf("bot answered %s", resp.Status)}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize))
	if err != nil {
		return nil, errs.Wrap(errs.KindRelay, op, err)
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	return &Image{ContentType: ct, Data: data}, nil
}
