package pay

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"time"

	"spicery/db"
	"spicery/errs"
	"spicery/models"
	"spicery/utils"

	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const idempotencyTTL = 24 * time.Hour

// IdempotencyStore keeps one record per Idempotency-Key.
type IdempotencyStore interface {
	// Insert fails with errs.ErrDuplicate when the key already exists.
	Insert(ctx context.Context, rec models.IdempotencyRecord) error
	Find(ctx context.Context, key string) (*models.IdempotencyRecord, error)
	Complete(ctx context.Context, key string, status int, body []byte) error
	Delete(ctx context.Context, key string) error
}

// Idempotency makes keyed mutating requests safe to replay.
type Idempotency struct {
	store IdempotencyStore
	log   *zap.Logger
	now   func() time.Time
}

func NewIdempotency(store IdempotencyStore, log *zap.Logger) *Idempotency {
	return &Idempotency{store: store, log: log, now: time.Now}
}

func computeRequestHash(r *http.Request, bodyBytes []byte, userID string) string {
	h := sha256.New()
	h.Write([]byte(r.Method + ":" + r.URL.Path + ":" + userID + ":"))
	h.Write(bodyBytes)
	return hex.EncodeToString(h.Sum(nil))
}

// CaptureResponseWriter wraps http.ResponseWriter to capture status and body.
type CaptureResponseWriter struct {
	w           http.ResponseWriter
	statusCode  int
	buf         bytes.Buffer
	wroteHeader bool
}

func NewCaptureResponseWriter(w http.ResponseWriter) *CaptureResponseWriter {
	return &CaptureResponseWriter{w: w, statusCode: http.StatusOK}
}

func (c *CaptureResponseWriter) Header() http.Header {
	return c.w.Header()
}

func (c *CaptureResponseWriter) WriteHeader(statusCode int) {
	if !c.wroteHeader {
		c.statusCode = statusCode
		c.w.WriteHeader(statusCode)
		c.wroteHeader = true
	}
}

func (c *CaptureResponseWriter) Write(b []byte) (int, error) {
	if !c.wroteHeader {
		c.WriteHeader(http.StatusOK)
	}
	c.buf.Write(b)
	return c.w.Write(b)
}

func (c *CaptureResponseWriter) Status() int       { return c.statusCode }
func (c *CaptureResponseWriter) BodyBytes() []byte { return c.buf.Bytes() }

// Wrap applies the Idempotency-Key protocol to next:
//   - no header: pass through.
//   - first use of a key: run next, store its response unless it was a 5xx,
//     in which case the key is freed so the client can retry.
//   - replay with the same request: return the stored response.
//   - same key, different request: 409.
//   - same key while the first request is still running: 409.
//
// Keys are scoped to the authenticated user.
func (m *Idempotency) Wrap(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		key := r.Header.Get("Idempotency-Key")
		if key == "" {
			next(w, r, ps)
			return
		}

		userID := utils.GetUserIDFromRequest(r)
		scoped := userID + ":" + key

		bodyBytes, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, "failed to read request body")
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(bodyBytes))

		reqHash := computeRequestHash(r, bodyBytes, userID)
		now := m.now().UTC()
		rec := models.IdempotencyRecord{
			Key:         scoped,
			Method:      r.Method,
			Path:        r.URL.Path,
			UserID:      userID,
			RequestHash: reqHash,
			CreatedAt:   now,
			ExpiresAt:   now.Add(idempotencyTTL),
		}

		ctx := r.Context()
		err = m.store.Insert(ctx, rec)
		if err == nil {
			crw := NewCaptureResponseWriter(w)
			next(crw, r, ps)

			// The response is already on the wire; bookkeeping outlives the request.
			bg := context.WithoutCancel(ctx)
			if crw.Status() >= http.StatusInternalServerError {
				if err := m.store.Delete(bg, scoped); err != nil {
					m.log.Warn("free idempotency key", zap.String("key", key), zap.Error(err))
				}
				return
			}
			if err := m.store.Complete(bg, scoped, crw.Status(), crw.BodyBytes()); err != nil {
				m.log.Warn("store idempotent response", zap.String("key", key), zap.Error(err))
			}
			return
		}

		if !errors.Is(err, errs.ErrDuplicate) {
			m.log.Error("idempotency insert", zap.String("key", key), zap.Error(err))
			utils.RespondWithError(w, http.StatusInternalServerError, "idempotency lookup error")
			return
		}

		existing, err := m.store.Find(ctx, scoped)
		if err != nil {
			m.log.Error("idempotency lookup", zap.String("key", key), zap.Error(err))
			utils.RespondWithError(w, http.StatusInternalServerError, "idempotency lookup error")
			return
		}
		if existing.RequestHash != reqHash {
			utils.RespondWithError(w, http.StatusConflict, "idempotency-key conflict")
			return
		}
		if !existing.Done {
			utils.RespondWithError(w, http.StatusConflict, "a request with this idempotency-key is still in progress")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Idempotent-Replayed", "true")
		w.WriteHeader(existing.Status)
		_, _ = w.Write(existing.Body)
	}
}

// MongoIdempotencyStore keeps records in the idempotency collection, which
// carries a unique index on key and a TTL index on expiresAt.
type MongoIdempotencyStore struct {
	coll *mongo.Collection
}

func NewMongoIdempotencyStore(store *db.Store) *MongoIdempotencyStore {
	return &MongoIdempotencyStore{coll: store.Idempotency}
}

func (s *MongoIdempotencyStore) Insert(ctx context.Context, rec models.IdempotencyRecord) error {
	_, err := s.coll.InsertOne(ctx, rec)
	if db.IsDuplicateKeyError(err) {
		return errs.ErrDuplicate
	}
	return err
}

func (s *MongoIdempotencyStore) Find(ctx context.Context, key string) (*models.IdempotencyRecord, error) {
	var rec models.IdempotencyRecord
	if err := s.coll.FindOne(ctx, bson.M{"key": key}).Decode(&rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *MongoIdempotencyStore) Complete(ctx context.Context, key string, status int, body []byte) error {
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"key": key},
		bson.M{"$set": bson.M{"status": status, "body": body, "done": true}},
	)
	return err
}

func (s *MongoIdempotencyStore) Delete(ctx context.Context, key string) error {
	_, err := s.coll.DeleteOne(ctx, bson.M{"key": key})
	return err
}
