package pii

import (
	"context"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/lemonmilkceo/final-sub001/internal/metrics"
)

// FieldResult is the outcome of decrypting one field. Exactly one of Value/Err
// is meaningful.
type FieldResult struct {
	Value string
	Err   error
}

func (r FieldResult) OK() bool { return r.Err == nil }

// AccessEntry attributes one decrypt attempt to an actor.
type AccessEntry struct {
	ActorID   uuid.UUID
	SubjectID uuid.UUID
	Field     string
	Purpose   string
	Succeeded bool
}

type AccessLogger interface {
	LogAccess(ctx context.Context, e AccessEntry)
}

// Reader decrypts records field by field and records every attempt.
type Reader struct {
	enc    *Encryptor
	access AccessLogger
	log    *slog.Logger
}

func NewReader(enc *Encryptor, access AccessLogger, log *slog.Logger) *Reader {
	if log == nil {
		log = slog.Default()
	}
	return &Reader{enc: enc, access: access, log: log}
}

// DecryptFields decrypts each blob in fields independently. A failure on one
// field is reported in its FieldResult and does not affect the others; the
// caller decides whether a partial record is usable.
func (r *Reader) DecryptFields(ctx context.Context, actorID, subjectID uuid.UUID, purpose string, fields map[string]string) map[string]FieldResult {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]FieldResult, len(fields))
	for _, name := range names {
		v, err := r.enc.Decrypt(fields[name])
		out[name] = FieldResult{Value: v, Err: err}

		result := "ok"
		if err != nil {
			result = "failed"
			r.log.Warn("pii field decrypt failed", "field", name, "subject_id", subjectID, "actor_id", actorID, "error", err)
		}
		metrics.PIIDecrypts.WithLabelValues(name, result).Inc()
		if r.access != nil {
			r.access.LogAccess(ctx, AccessEntry{
				ActorID:   actorID,
				SubjectID: subjectID,
				Field:     name,
				Purpose:   purpose,
				Succeeded: err == nil,
			})
		}
	}
	return out
}
