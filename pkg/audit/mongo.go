package audit

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/freshbulk/storefront/pkg/logger"
)

const (
	queueSize  = 1024
	batchSize  = 50
	drainEvery = 2 * time.Second
)

// MongoRecorder buffers entries and writes them in batches from a single
// goroutine. Record never blocks; a full buffer drops the entry.
type MongoRecorder struct {
	client *mongo.Client
	col    *mongo.Collection
	write  func(ctx context.Context, docs []any) error

	queue   chan Entry
	flushCh chan chan struct{}
	done    chan struct{}
	stopped chan struct{}
}

func NewMongoRecorder(ctx context.Context, uri, db, collection string) (*MongoRecorder, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	opts := options.Client().ApplyURI(uri).
		SetConnectTimeout(5 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(10)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("audit: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("audit: ping: %w", err)
	}

	col := client.Database(db).Collection(collection)
	if _, err := col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "subject", Value: 1}, {Key: "at", Value: 1}},
	}); err != nil {
		logger.Warn("audit: index creation failed", "error", err)
	}

	r := newMongoRecorder(func(ctx context.Context, docs []any) error {
		_, err := col.InsertMany(ctx, docs)
		return err
	})
	r.client = client
	r.col = col
	return r, nil
}

func newMongoRecorder(write func(context.Context, []any) error) *MongoRecorder {
	r := &MongoRecorder{
		write:   write,
		queue:   make(chan Entry, queueSize),
		flushCh: make(chan chan struct{}),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go r.drainLoop()
	return r
}

func (r *MongoRecorder) Record(ctx context.Context, e Entry) error {
	select {
	case <-r.done:
		return fmt.Errorf("audit: recorder closed")
	default:
	}
	select {
	case r.queue <- e:
		return nil
	default:
		logger.WithCtx(ctx).Warn("audit: queue full, entry dropped", "event", e.Event, "subject", e.Subject)
		return nil
	}
}

// History flushes buffered entries first so a caller sees its own writes.
func (r *MongoRecorder) History(ctx context.Context, subject string, limit int) ([]Entry, error) {
	r.Flush(ctx)

	opts := options.Find().SetSort(bson.D{{Key: "at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := r.col.Find(ctx, bson.M{"subject": subject}, opts)
	if err != nil {
		return nil, fmt.Errorf("audit: find: %w", err)
	}
	entries := []Entry{}
	if err := cur.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("audit: decode: %w", err)
	}
	return entries, nil
}

// Flush waits until everything queued so far has been written.
func (r *MongoRecorder) Flush(ctx context.Context) {
	ack := make(chan struct{})
	select {
	case r.flushCh <- ack:
	case <-r.stopped:
		return
	case <-ctx.Done():
		return
	}
	select {
	case <-ack:
	case <-ctx.Done():
	}
}

// Close drains the queue and disconnects. Calling it twice is safe.
func (r *MongoRecorder) Close(ctx context.Context) error {
	select {
	case <-r.done:
	default:
		close(r.done)
	}
	select {
	case <-r.stopped:
	case <-ctx.Done():
		return ctx.Err()
	}
	if r.client != nil {
		return r.client.Disconnect(ctx)
	}
	return nil
}

func (r *MongoRecorder) drainLoop() {
	defer close(r.stopped)
	ticker := time.NewTicker(drainEvery)
	defer ticker.Stop()

	batch := make([]any, 0, batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.write(ctx, batch); err != nil {
			logger.Error("audit: write failed", "entries", len(batch), "error", err)
		}
		batch = batch[:0]
	}
	drain := func() {
		for {
			select {
			case e := <-r.queue:
				batch = append(batch, e)
				if len(batch) >= batchSize {
					flush()
				}
			default:
				flush()
				return
			}
		}
	}

	for {
		select {
		case e := <-r.queue:
			batch = append(batch, e)
			if len(batch) >= batchSize {
				flush()
			}
		case ack := <-r.flushCh:
			drain()
			close(ack)
		case <-ticker.C:
			flush()
		case <-r.done:
			drain()
			return
		}
	}
}
