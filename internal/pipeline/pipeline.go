// Package pipeline wires the Kafka input streams, the prediction engine and
// the prediction sink into one runnable unit: consume, parse, dispatch per
// vehicle, predict, publish.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/transitlens/transitlens/internal/config"
	"github.com/transitlens/transitlens/internal/message"
)

// Pipeline orchestrates the stages: two consumers, the ingest loop, the
// per-vehicle prediction workers, the sweeper and the publisher.
type Pipeline struct {
	cfg         *config.Config
	posConsumer *Consumer
	obsConsumer *Consumer
	engine      *Engine
	sink        PredictionSink
	logger      *zap.Logger

	rawPositions    chan []byte
	rawObservations chan []byte
	// vehicleLanes fan positions out to the workers; every report for one
	// vehicle lands in the same lane so its predictions stay ordered.
	vehicleLanes []chan *message.VehiclePosition
	predictions  chan message.Prediction
}

// New creates and wires up a new prediction pipeline.
func New(cfg *config.Config, logger *zap.Logger) (*Pipeline, error) {
	initLogger := logger.Named("pipeline.init")
	initLogger.Debug("Creating pipeline components...")

	const channelBufferSize = 100
	rawPositions := make(chan []byte, channelBufferSize)
	rawObservations := make(chan []byte, channelBufferSize)
	predictions := make(chan message.Prediction, channelBufferSize)

	lanes := make([]chan *message.VehiclePosition, cfg.Pipeline.Workers)
	for i := range lanes {
		lanes[i] = make(chan *message.VehiclePosition, 16)
	}

	posConsumer, err := NewConsumer(cfg.Kafka, cfg.Kafka.PositionsTopic, rawPositions, logger.Named("consumer.positions"))
	if err != nil {
		initLogger.Error("Failed to create positions consumer", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrConsumerCreationFailed, err)
	}
	obsConsumer, err := NewConsumer(cfg.Kafka, cfg.Kafka.ObservationsTopic, rawObservations, logger.Named("consumer.observations"))
	if err != nil {
		initLogger.Error("Failed to create observations consumer", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrConsumerCreationFailed, err)
	}

	engine := NewEngine(cfg, logger.Named("engine"))

	var sink PredictionSink
	if cfg.Kafka.PredictionsTopic != "" {
		sink = NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.PredictionsTopic, logger.Named("sink"))
	} else {
		sink = NewLogSink(logger.Named("predictions"))
	}

	p := &Pipeline{
		cfg:             cfg,
		posConsumer:     posConsumer,
		obsConsumer:     obsConsumer,
		engine:          engine,
		sink:            sink,
		logger:          logger.Named("pipeline"),
		rawPositions:    rawPositions,
		rawObservations: rawObservations,
		vehicleLanes:    lanes,
		predictions:     predictions,
	}

	initLogger.Info("Pipeline instance created successfully",
		zap.Int("workers", cfg.Pipeline.Workers),
	)
	return p, nil
}

// Engine exposes the prediction engine for diagnostic endpoints.
func (p *Pipeline) Engine() *Engine { return p.engine }

// Run starts all pipeline components and waits for them to complete or
// context cancellation.
func (p *Pipeline) Run(ctx context.Context) error {
	sugar := p.logger.Sugar()
	var wg sync.WaitGroup
	pipelineErr := make(chan error, 5+len(p.vehicleLanes))

	sugar.Info("Pipeline Run: Starting components...")

	wg.Add(5)
	go p.runPositionsConsumer(ctx, &wg, pipelineErr)
	go p.runObservationsConsumer(ctx, &wg, pipelineErr)
	go p.runDispatcher(ctx, &wg)
	go p.runIngest(ctx, &wg)
	go p.runSweeper(ctx, &wg)

	// Workers share a WaitGroup of their own so the predictions channel can
	// close once the last of them drains its lane.
	var workersWG sync.WaitGroup
	workersWG.Add(len(p.vehicleLanes))
	for i, lane := range p.vehicleLanes {
		go p.runWorker(ctx, &workersWG, i, lane)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		workersWG.Wait()
		close(p.predictions)
		p.logger.Debug("Predictions channel closed")
	}()

	wg.Add(1)
	go p.runPublisher(ctx, &wg, pipelineErr)

	var firstErr error
	select {
	case <-ctx.Done():
		sugar.Info("Pipeline Run: Context cancelled. Waiting for components to finish...")
		firstErr = ctx.Err()
	case err := <-pipelineErr:
		sugar.Errorw("Pipeline Run: Received error from a component, initiating shutdown...", zap.Error(err))
		firstErr = err
	}

	wg.Wait()
	sugar.Info("Pipeline Run: All components finished.")

	if firstErr != nil && !errors.Is(firstErr, context.Canceled) {
		return firstErr
	}
	return nil
}

func (p *Pipeline) runPositionsConsumer(ctx context.Context, wg *sync.WaitGroup, errCh chan<- error) {
	defer wg.Done()
	defer func() {
		close(p.rawPositions)
		p.logger.Debug("Raw positions channel closed")
	}()

	if err := p.posConsumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Error("Positions consumer exited with error", zap.Error(err))
		errCh <- fmt.Errorf("%w: %w", ErrConsumerRunFailed, err)
	}
}

func (p *Pipeline) runObservationsConsumer(ctx context.Context, wg *sync.WaitGroup, errCh chan<- error) {
	defer wg.Done()
	defer func() {
		close(p.rawObservations)
		p.logger.Debug("Raw observations channel closed")
	}()

	if err := p.obsConsumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Error("Observations consumer exited with error", zap.Error(err))
		errCh <- fmt.Errorf("%w: %w", ErrConsumerRunFailed, err)
	}
}

// runDispatcher parses raw position reports and routes each to its vehicle's
// lane.
func (p *Pipeline) runDispatcher(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	defer func() {
		for _, lane := range p.vehicleLanes {
			close(lane)
		}
		p.logger.Debug("Vehicle lanes closed")
	}()

	dispatchLogger := p.logger.Named("dispatcher").Sugar()
	dispatchLogger.Debug("Starting dispatcher goroutine...")

	for {
		select {
		case raw, ok := <-p.rawPositions:
			if !ok {
				dispatchLogger.Debug("Dispatcher finished (raw positions channel closed).")
				return
			}

			pos, err := message.ParsePosition(raw)
			if err != nil {
				parseFailuresTotal.WithLabelValues("positions").Inc()
				dispatchLogger.Warnw("Failed to parse position, skipping", zap.Error(err))
				continue
			}

			lane := p.vehicleLanes[workerIndex(pos.VehicleID, len(p.vehicleLanes))]
			select {
			case lane <- pos:

			case <-ctx.Done():
				dispatchLogger.Debug("Dispatcher context cancelled during send.", zap.Error(ctx.Err()))
				return
			}

		case <-ctx.Done():
			dispatchLogger.Debug("Dispatcher context cancelled while waiting for position.", zap.Error(ctx.Err()))
			return
		}
	}
}

// runWorker turns one lane of position reports into predictions.
func (p *Pipeline) runWorker(ctx context.Context, wg *sync.WaitGroup, index int, lane <-chan *message.VehiclePosition) {
	defer wg.Done()

	workerLogger := p.logger.Named("worker").Sugar()
	workerLogger.Debugw("Starting prediction worker...", "worker", index)

	for {
		select {
		case pos, ok := <-lane:
			if !ok {
				workerLogger.Debugw("Worker finished (lane closed).", "worker", index)
				return
			}

			for _, pred := range p.engine.HandlePosition(pos) {
				select {
				case p.predictions <- pred:

				case <-ctx.Done():
					workerLogger.Debugw("Worker context cancelled during send.", "worker", index)
					return
				}
			}

		case <-ctx.Done():
			workerLogger.Debugw("Worker context cancelled while waiting for position.", "worker", index)
			return
		}
	}
}

// runIngest parses completed traversals and folds them into the caches.
func (p *Pipeline) runIngest(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	ingestLogger := p.logger.Named("ingest").Sugar()
	ingestLogger.Debug("Starting ingest goroutine...")

	for {
		select {
		case raw, ok := <-p.rawObservations:
			if !ok {
				ingestLogger.Debug("Ingest finished (raw observations channel closed).")
				return
			}

			obs, err := message.ParseObservation(raw)
			if err != nil {
				parseFailuresTotal.WithLabelValues("observations").Inc()
				ingestLogger.Warnw("Failed to parse observation, skipping", zap.Error(err))
				continue
			}
			p.engine.HandleObservation(obs)

		case <-ctx.Done():
			ingestLogger.Debug("Ingest context cancelled.", zap.Error(ctx.Err()))
			return
		}
	}
}

// runPublisher delivers finished predictions to the sink. Sink failures are
// counted and logged but never stop the pipeline.
func (p *Pipeline) runPublisher(ctx context.Context, wg *sync.WaitGroup, errCh chan<- error) {
	defer wg.Done()
	defer func() {
		if err := p.sink.Close(); err != nil {
			p.logger.Warn("Failed to close prediction sink cleanly", zap.Error(err))
		}
	}()

	publisherLogger := p.logger.Named("publisher").Sugar()
	publisherLogger.Debug("Starting publisher goroutine...")

	for {
		select {
		case pred, ok := <-p.predictions:
			if !ok {
				publisherLogger.Debug("Publisher finished (predictions channel closed).")
				return
			}

			if err := p.sink.Publish(ctx, pred); err != nil && !errors.Is(err, context.Canceled) {
				publishFailuresTotal.Inc()
				publisherLogger.Warnw("Failed to publish prediction",
					zap.String("vehicle_id", pred.VehicleID),
					zap.Int("segment_index", pred.SegmentIndex),
					zap.Error(err),
				)
			}

		case <-ctx.Done():
			publisherLogger.Debug("Publisher context cancelled.", zap.Error(ctx.Err()))
			return
		}
	}
}

// runSweeper periodically ages out idle TTL-cache entries and refreshes the
// cache size gauges.
func (p *Pipeline) runSweeper(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	sweepLogger := p.logger.Named("sweeper").Sugar()
	sweepLogger.Debug("Starting sweeper goroutine...")

	ticker := time.NewTicker(p.cfg.Pipeline.EvictInterval)
	defer ticker.Stop()

	for {
		select {
		case tickTime := <-ticker.C:
			if evicted := p.engine.EvictIdle(tickTime); evicted > 0 {
				sweepLogger.Debugw("Evicted idle cache entries", "count", evicted)
			}

		case <-ctx.Done():
			sweepLogger.Debug("Sweeper context cancelled.")
			return
		}
	}
}

// workerIndex maps a vehicle to its lane.
func workerIndex(vehicleID string, lanes int) int {
	h := fnv.New32a()
	h.Write([]byte(vehicleID))
	return int(h.Sum32() % uint32(lanes))
}
