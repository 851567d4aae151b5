package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/cosmetica/clinic-booking/internal/app/bootstrap"
	appconfig "github.com/cosmetica/clinic-booking/internal/config"
	"github.com/cosmetica/clinic-booking/internal/observability/metrics"
	"github.com/cosmetica/clinic-booking/internal/reservations"
	"github.com/cosmetica/clinic-booking/pkg/logging"
)

type reaper interface {
	ReapPast(ctx context.Context) (*reservations.ReapResult, error)
}

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	if err := cfg.ValidateStorage(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	pool, err := bootstrap.BuildPostgresPool(context.Background(), cfg)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	svc := reservations.NewService(reservations.NewPostgresRepository(pool), logger,
		reservations.WithMetrics(metrics.NewBookingMetrics(nil)),
	)
	lambda.Start(func(ctx context.Context, raw json.RawMessage) (any, error) {
		return handle(ctx, svc, cfg.CronSecret, logger, raw)
	})
}

// handle accepts either an EventBridge scheduled event or an API Gateway v2
// HTTP request. The cron secret is only enforced for HTTP invocations.
func handle(ctx context.Context, svc reaper, cronSecret string, logger *logging.Logger, raw json.RawMessage) (any, error) {
	var envelope struct {
		RequestContext *json.RawMessage `json:"requestContext"`
	}
	_ = json.Unmarshal(raw, &envelope)
	if envelope.RequestContext == nil {
		result, err := svc.ReapPast(ctx)
		if err != nil {
			logger.Error("scheduled cleanup failed", "error", err)
			return nil, err
		}
		return result, nil
	}

	var evt events.APIGatewayV2HTTPRequest
	if err := json.Unmarshal(raw, &evt); err != nil {
		return jsonResponse(http.StatusBadRequest, map[string]string{"error": "invalid request"}), nil
	}
	return handleHTTP(ctx, svc, cronSecret, logger, evt), nil
}

func handleHTTP(ctx context.Context, svc reaper, cronSecret string, logger *logging.Logger, evt events.APIGatewayV2HTTPRequest) events.APIGatewayV2HTTPResponse {
	method := strings.ToUpper(strings.TrimSpace(evt.RequestContext.HTTP.Method))
	switch method {
	case http.MethodOptions:
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusNoContent, Headers: corsHeaders()}
	case http.MethodGet, http.MethodPost:
	default:
		return jsonResponse(http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}

	if !reservations.CronAuthorized(cronSecret, header(evt, "authorization"), header(evt, "x-cron-secret")) {
		return jsonResponse(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	result, err := svc.ReapPast(ctx)
	if err != nil {
		logger.Error("cleanup failed", "error", err)
		return jsonResponse(http.StatusInternalServerError, map[string]string{"error": "Cleanup failed"})
	}
	return jsonResponse(http.StatusOK, result)
}

// header looks up a request header; API Gateway v2 lowercases names but tests and proxies may not.
func header(evt events.APIGatewayV2HTTPRequest, name string) string {
	for k, v := range evt.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

func corsHeaders() map[string]string {
	return map[string]string{
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Headers": "authorization, x-cron-secret, content-type",
		"Access-Control-Allow-Methods": "GET, POST, OPTIONS",
	}
}

func jsonResponse(status int, payload any) events.APIGatewayV2HTTPResponse {
	body, _ := json.Marshal(payload)
	headers := corsHeaders()
	headers["Content-Type"] = "application/json"
	return events.APIGatewayV2HTTPResponse{StatusCode: status, Headers: headers, Body: string(body)}
}
