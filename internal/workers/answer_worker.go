package workers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/prepstage/intervue/internal/services"
	"github.com/prepstage/intervue/internal/utils"
)

// AnswerWorkerPool consumes queued answer submissions off a Redis stream and
// runs the full scoring pipeline on each, publishing progress and results on
// the interview's pub/sub channels so a connected client can follow along.
type AnswerWorkerPool struct {
	Redis     *redis.Client
	Responses services.ResponseService

	NumWorkers int
	Logger     *logrus.Logger

	Stream         string
	Group          string
	ConsumerPrefix string
}

func (p *AnswerWorkerPool) Start(ctx context.Context) error {
	if p.Redis == nil || p.Responses == nil {
		return errors.New("AnswerWorkerPool missing dependency: Redis/Responses must be set")
	}
	if p.Stream == "" {
		p.Stream = "answers:stream"
	}
	if p.Group == "" {
		p.Group = "answer-workers"
	}
	if p.ConsumerPrefix == "" {
		p.ConsumerPrefix = "c"
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 5
	}
	if p.Logger == nil {
		p.Logger = logrus.New()
	}

	_ = p.Redis.XGroupCreateMkStream(ctx, p.Stream, p.Group, "0").Err() // ignore BUSYGROUP

	for i := 0; i < p.NumWorkers; i++ {
		consumer := p.ConsumerPrefix + "-" + strconv.Itoa(i+1)
		go p.runConsumer(ctx, consumer)
	}
	return nil
}

func (p *AnswerWorkerPool) runConsumer(ctx context.Context, consumer string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := p.Redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    p.Group,
			Consumer: consumer,
			Streams:  []string{p.Stream, ">"},
			Count:    10,
			Block:    5 * time.Second,
		}).Result()

		if err != nil {
			if err == redis.Nil {
				continue
			}
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				p.handleMsg(ctx, msg)
				_ = p.Redis.XAck(ctx, p.Stream, p.Group, msg.ID).Err()
			}
		}
	}
}

func normalizeLanguage(v string) string {
	v = strings.TrimSpace(v)
	switch v {
	case "id", "id-ID":
		return "id-ID"
	case "en", "en-US":
		return "en-US"
	default:
		if v == "" {
			return "en-US"
		}
		return v
	}
}

func (p *AnswerWorkerPool) handleMsg(ctx context.Context, msg redis.XMessage) {
	getStr := func(k string) string {
		v, ok := msg.Values[k]
		if !ok || v == nil {
			return ""
		}
		s, _ := v.(string)
		return s
	}

	interviewID := getStr("interview_id")
	questionStr := getStr("question_number")
	if interviewID == "" || questionStr == "" {
		return
	}
	questionNumber, _ := strconv.Atoi(questionStr)

	log := p.Logger.WithFields(logrus.Fields{
		"redis_id":        msg.ID,
		"interview_id":    interviewID,
		"question_number": questionNumber,
	})

	respCh := "interview:" + interviewID + ":response"
	statusCh := "interview:" + interviewID + ":status"

	publishStatus := func(status, message string) {
		_ = p.Redis.Publish(ctx, statusCh, `{"type":"status","status":"`+status+`","message":"`+message+`","question_number":`+strconv.Itoa(questionNumber)+`}`).Err()
	}

	in := services.SubmitAnswerInput{
		InterviewID:    interviewID,
		QuestionNumber: questionNumber,
		Transcript:     getStr("transcript"),
		Language:       normalizeLanguage(getStr("language")),
	}

	// Typed answers carry a transcript; spoken ones carry audio inline or
	// by URL and get transcribed inside the pipeline.
	if in.Transcript == "" {
		if b64 := getStr("audio_base64"); b64 != "" {
			raw := b64
			if i := strings.Index(raw, ","); i >= 0 {
				raw = raw[i+1:] // strip data:...;base64,
			}
			decoded, err := base64.StdEncoding.DecodeString(raw)
			if err != nil {
				log.WithError(err).Warn("base64 decode failed")
				publishStatus("failed", "invalid audio_base64")
				return
			}
			in.Audio = decoded
		} else if url := getStr("audio_url"); url != "" {
			req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				log.WithError(err).Warn("audio_url fetch failed")
				publishStatus("failed", "failed to fetch audio_url")
				return
			}
			defer resp.Body.Close()

			const maxBytes = 10 << 20
			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBytes))
			if len(body) == 0 {
				publishStatus("failed", "empty audio")
				return
			}
			in.Audio = body
		} else {
			return
		}
	}

	publishStatus("processing", "scoring answer")

	start := time.Now()
	result, err := p.Responses.Submit(ctx, in)
	if err != nil {
		log.WithError(err).Error("answer scoring failed")
		reason := "scoring failed"
		var appErr *utils.AppError
		if errors.As(err, &appErr) {
			reason = appErr.Message
		}
		publishStatus("failed", reason)
		return
	}

	if result.Terminated {
		payload, _ := json.Marshal(map[string]any{
			"type":            "interview_terminated",
			"question_number": questionNumber,
			"violation_total": result.ViolationTotal,
		})
		_ = p.Redis.Publish(ctx, respCh, string(payload)).Err()
		publishStatus("terminated", "violation threshold reached")
		return
	}

	payload, _ := json.Marshal(map[string]any{
		"type":               "answer_scored",
		"question_number":    questionNumber,
		"transcript":         result.Transcript,
		"response":           result.Response,
		"interview_complete": result.Completed,
		"processing_time_ms": time.Since(start).Milliseconds(),
	})
	_ = p.Redis.Publish(ctx, respCh, string(payload)).Err()
	publishStatus("done", "answer scored")
}
