package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

type PushResult struct {
	SuccessCount int      `json:"successCount"`
	FailureCount int      `json:"failureCount"`
	FailedTokens []string `json:"failedTokens"`
}

// PushGateway delivers a push notification to a batch of device tokens. The
// dispatcher takes this as a dependency so delivery can be stubbed in tests
// and swapped per deployment.
type PushGateway interface {
	Send(ctx context.Context, tokens []string, title, body string, data map[string]string) (PushResult, error)
}

type FcmArgs struct {
	Endpoint  string
	ServerKey string
}

type FcmGateway struct {
	endpoint  string
	serverKey string

	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

func NewFcmGateway(args FcmArgs) (*FcmGateway, error) {
	if args.Endpoint == "" {
		return nil, fmt.Errorf("push gateway endpoint must be specified")
	}
	if args.ServerKey == "" {
		return nil, fmt.Errorf("push gateway server key must be specified")
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "push-gateway",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &FcmGateway{
		endpoint:  args.Endpoint,
		serverKey: args.ServerKey,
		client:    &http.Client{Timeout: 10 * time.Second},
		breaker:   breaker,
	}, nil
}

type fcmRequest struct {
	RegistrationIds []string          `json:"registration_ids"`
	Notification    fcmNotification   `json:"notification"`
	Data            map[string]string `json:"data,omitempty"`
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type fcmResponse struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
	Results []struct {
		Error string `json:"error"`
	} `json:"results"`
}

func (g *FcmGateway) Send(ctx context.Context, tokens []string, title, body string, data map[string]string) (PushResult, error) {
	if len(tokens) == 0 {
		return PushResult{}, nil
	}

	payload, err := json.Marshal(fcmRequest{
		RegistrationIds: tokens,
		Notification:    fcmNotification{Title: title, Body: body},
		Data:            data,
	})
	if err != nil {
		return PushResult{}, fmt.Errorf("error serializing push payload: %w", err)
	}

	response, err := g.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("error creating push request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", fmt.Sprintf("key=%v", g.serverKey))

		res, err := g.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("error sending push request: %w", err)
		}
		defer res.Body.Close()

		if res.StatusCode != http.StatusOK {
			content, _ := io.ReadAll(res.Body)
			return nil, fmt.Errorf("push gateway returned status %d: %v", res.StatusCode, string(content))
		}

		var parsed fcmResponse
		if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
			return nil, fmt.Errorf("error parsing push gateway response: %w", err)
		}
		return parsed, nil
	})
	if err != nil {
		return PushResult{FailureCount: len(tokens), FailedTokens: tokens}, err
	}

	parsed := response.(fcmResponse)

	result := PushResult{SuccessCount: parsed.Success, FailureCount: parsed.Failure}
	for i, entry := range parsed.Results {
		if entry.Error != "" && i < len(tokens) {
			result.FailedTokens = append(result.FailedTokens, tokens[i])
		}
	}

	return result, nil
}

// NoopPushGateway drops all pushes. Used when no push credentials are
// configured so the rest of the notification pipeline still runs.
type NoopPushGateway struct{}

func (NoopPushGateway) Send(ctx context.Context, tokens []string, title, body string, data map[string]string) (PushResult, error) {
	return PushResult{}, nil
}
