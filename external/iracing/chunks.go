package iracing

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"
	"github.com/riskibarqy/raceweek-stats/internal/domain/racestats"
	"github.com/riskibarqy/raceweek-stats/internal/metrics"
	"github.com/sourcegraph/conc/pool"
	"github.com/valyala/bytebufferpool"
	"github.com/valyala/fasthttp"
)

type chunkResult struct {
	index int
	name  string
	body  []byte
	err   error
}

// downloadChunks fetches every file before looking at any outcome, so the
// caller always learns the full set of failed files.
func (c *Client) downloadChunks(ctx context.Context, baseURL string, names []string) ([][]byte, error) {
	p := pool.NewWithResults[chunkResult]().WithMaxGoroutines(c.chunkConcurrency)
	for i, name := range names {
		i, name := i, name
		p.Go(func() chunkResult {
			body, err := c.downloadChunk(ctx, baseURL+name)
			return chunkResult{index: i, name: name, body: body, err: err}
		})
	}
	results := p.Wait()

	bodies := make([][]byte, len(names))
	causes := make(map[string]string)
	for _, result := range results {
		if result.err != nil {
			causes[result.name] = result.err.Error()
			continue
		}
		bodies[result.index] = result.body
	}
	if len(causes) > 0 {
		return nil, newPartialChunkFailure(len(names), causes)
	}
	return bodies, nil
}

func (c *Client) downloadChunk(ctx context.Context, chunkURL string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(c.timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(chunkURL)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	err := c.chunkClient.DoDeadline(req, resp, deadline)
	metrics.UpstreamRequestDuration.WithLabelValues(metrics.OpDownloadChunk).Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(metrics.OpDownloadChunk, "error").Inc()
		return nil, fmt.Errorf("download chunk: %w", err)
	}

	status := resp.StatusCode()
	metrics.UpstreamRequestsTotal.WithLabelValues(metrics.OpDownloadChunk, strconv.Itoa(status)).Inc()
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("download chunk status=%d body=%s", status, abbreviateBody(resp.Body()))
	}

	// resp is returned to the pool, so the body must be copied out.
	return append([]byte(nil), resp.Body()...), nil
}

// decodeChunks flattens the chunk arrays in manifest order. Every
// violation across all chunks is collected before failing.
func (c *Client) decodeChunks(names []string, bodies [][]byte) ([]racestats.RawSessionRecord, error) {
	records := make([]racestats.RawSessionRecord, 0)
	violations := make([]SchemaViolation, 0)

	for i, body := range bodies {
		name := names[i]

		var rows []json.RawMessage
		if err := sonic.Unmarshal(body, &rows); err != nil || rows == nil {
			violations = append(violations, SchemaViolation{
				Chunk: name,
				Index: -1,
				Rule:  "chunk body must be a JSON array",
				Value: abbreviateBody(body),
			})
			continue
		}

		for j, row := range rows {
			var record sessionRecord
			if err := sonic.Unmarshal(row, &record); err != nil {
				violations = append(violations, SchemaViolation{
					Chunk: name,
					Index: j,
					Field: "record",
					Rule:  "decode: " + err.Error(),
					Value: abbreviateBody(row),
				})
				continue
			}
			if err := c.validate.Struct(record); err != nil {
				violations = append(violations, validationViolations(name, j, err)...)
				continue
			}
			records = append(records, record.toDomain())
		}
	}

	if len(violations) > 0 {
		return nil, &SchemaMismatchError{Violations: violations}
	}
	return records, nil
}

func newRecordValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validationViolations(chunk string, index int, err error) []SchemaViolation {
	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) {
		return []SchemaViolation{{Chunk: chunk, Index: index, Field: "record", Rule: err.Error()}}
	}

	out := make([]SchemaViolation, 0, len(fieldErrs))
	for _, fieldErr := range fieldErrs {
		rule := fieldErr.Tag()
		if param := fieldErr.Param(); param != "" {
			rule += "=" + param
		}
		out = append(out, SchemaViolation{
			Chunk: chunk,
			Index: index,
			Field: fieldErr.Field(),
			Rule:  rule,
			Value: fmt.Sprint(fieldErr.Value()),
		})
	}
	return out
}

// previewChunks joins the head of each chunk body for diagnostics.
func previewChunks(names []string, bodies [][]byte, limit int) string {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	for i, body := range bodies {
		if buf.Len() >= limit {
			_, _ = buf.WriteString(" ...")
			break
		}
		if i > 0 {
			_ = buf.WriteByte(' ')
		}
		_, _ = buf.WriteString(names[i])
		_ = buf.WriteByte('=')
		remaining := limit - buf.Len()
		if remaining <= 0 {
			continue
		}
		if len(body) > remaining {
			body = body[:remaining]
		}
		_, _ = buf.Write(body)
	}
	return buf.String()
}
