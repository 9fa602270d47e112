package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/teslashibe/go-gesture/pkg/frame"
	"github.com/teslashibe/go-gesture/pkg/gesture"
)

// Multipart file fields accepted by /predict, in precedence order.
var fileFields = []string{"file", "image", "frame"}

// Client-facing messages for non-decode failures.
const (
	msgPredictionFailed = "Prediction failed"
	msgTimedOut         = "Prediction timed out"
	msgUnavailable      = "Service unavailable"
)

// PredictRequest is the JSON body of POST /predict.
type PredictRequest struct {
	Frame string `json:"frame"`
}

// PredictResponse is the success body of POST /predict. Prediction is empty
// when no gesture was detected.
type PredictResponse struct {
	Prediction string `json:"prediction"`
}

// handlePredict serves POST /predict. A multipart file wins over a
// multipart "frame" text field, which wins over a JSON body.
func (s *Server) handlePredict(c *fiber.Ctx) error {
	payload, err := extractPayload(c, fileFields)
	if err != nil {
		return s.replyError(c, err)
	}
	return s.reply(c, payload)
}

// handlePredictImage serves POST /predict/image, which only accepts a
// multipart upload in the "image" field.
func (s *Server) handlePredictImage(c *fiber.Ctx) error {
	if !isMultipart(c) {
		return s.replyError(c, frame.Missing())
	}
	form, err := c.MultipartForm()
	if err != nil {
		return s.replyError(c, frame.Missing())
	}
	payload, ok, err := fileFrom(form, []string{"image"})
	if err != nil {
		return err
	}
	if !ok {
		return s.replyError(c, frame.Missing())
	}
	return s.reply(c, payload)
}

func (s *Server) reply(c *fiber.Ctx, payload frame.RawPayload) error {
	result, err := s.recognize(c.UserContext(), payload)
	if err != nil {
		s.logger.Debug("prediction rejected",
			"route", c.Path(),
			"source", payload.Source.String(),
			"error", err,
		)
		return s.replyError(c, err)
	}
	return c.JSON(PredictResponse{Prediction: result.Label})
}

func (s *Server) replyError(c *fiber.Ctx, err error) error {
	code, msg := errorStatus(err)
	return c.Status(code).JSON(fiber.Map{"error": msg})
}

// recognize runs one payload through decode and classification under the
// configured deadline.
func (s *Server) recognize(parent context.Context, payload frame.RawPayload) (gesture.Result, error) {
	ctx, cancel := s.requestContext(parent)
	defer cancel()

	buf, err := frame.Decode(payload)
	if err != nil {
		return gesture.Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return gesture.Result{}, err
	}
	return s.predictor.Predict(ctx, buf)
}

// requestContext derives a per-request context that ends on the request
// deadline, on parent cancellation or on server shutdown.
func (s *Server) requestContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(s.ctx, cancel)

	if s.cfg.RequestTimeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		return ctx, func() {
			cancelTimeout()
			stop()
			cancel()
		}
	}
	return ctx, func() {
		stop()
		cancel()
	}
}

// errorStatus maps a pipeline error to an HTTP status and a client-safe
// message.
func errorStatus(err error) (int, string) {
	if kind := frame.KindOf(err); kind != 0 {
		return fiber.StatusBadRequest, kind.Message()
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusServiceUnavailable, msgTimedOut
	case errors.Is(err, context.Canceled), errors.Is(err, gesture.ErrClosed):
		return fiber.StatusServiceUnavailable, msgUnavailable
	default:
		return fiber.StatusInternalServerError, msgPredictionFailed
	}
}

func isMultipart(c *fiber.Ctx) bool {
	ct := string(c.Request().Header.ContentType())
	return strings.HasPrefix(ct, fiber.MIMEMultipartForm)
}

// extractPayload finds the frame in a request. It returns a missing-payload
// decode error when the request carries none.
func extractPayload(c *fiber.Ctx, fields []string) (frame.RawPayload, error) {
	if isMultipart(c) {
		form, err := c.MultipartForm()
		if err != nil {
			return frame.RawPayload{}, frame.Missing()
		}
		payload, ok, err := fileFrom(form, fields)
		if err != nil {
			return frame.RawPayload{}, err
		}
		if ok {
			return payload, nil
		}
		if v := form.Value["frame"]; len(v) > 0 && v[0] != "" {
			return frame.Inline(v[0]), nil
		}
		return frame.RawPayload{}, frame.Missing()
	}

	body := c.Body()
	if len(body) == 0 {
		return frame.RawPayload{}, frame.Missing()
	}
	var req PredictRequest
	if err := json.Unmarshal(body, &req); err != nil || req.Frame == "" {
		return frame.RawPayload{}, frame.Missing()
	}
	return frame.Inline(req.Frame), nil
}

// fileFrom reads the first present file field. A present but empty file is
// still returned so the decoder reports it as unsupported.
func fileFrom(form *multipart.Form, fields []string) (frame.RawPayload, bool, error) {
	for _, field := range fields {
		files := form.File[field]
		if len(files) == 0 {
			continue
		}
		data, err := readFile(files[0])
		if err != nil {
			return frame.RawPayload{}, false, err
		}
		return frame.Upload(data), true, nil
	}
	return frame.RawPayload{}, false, nil
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("server: open upload %q: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("server: read upload %q: %w", fh.Filename, err)
	}
	return data, nil
}
