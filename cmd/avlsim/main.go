// avlsim feeds the engine with synthetic vehicle positions and completed
// traversals, for local development against a single-broker Kafka.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/transitlens/transitlens/internal/message"
)

const (
	kafkaBroker       = "localhost:9092"
	positionsTopic    = "vehicle-positions"
	observationsTopic = "segment-observations"

	tripID       = "trip-sim-1"
	routeID      = "route-sim"
	segmentCount = 12
	segmentLen   = 800.0 // meters
)

// simVehicle walks one vehicle along the trip's segments.
type simVehicle struct {
	id            string
	segmentIndex  int
	distanceAlong float64
	speed         float64 // meters per tick
	enteredAt     time.Time
}

func main() {
	posWriter := &kafka.Writer{
		Addr:     kafka.TCP(kafkaBroker),
		Topic:    positionsTopic,
		Balancer: &kafka.Hash{},
	}
	obsWriter := &kafka.Writer{
		Addr:     kafka.TCP(kafkaBroker),
		Topic:    observationsTopic,
		Balancer: &kafka.Hash{},
	}
	defer func() {
		if err := posWriter.Close(); err != nil {
			log.Printf("Error closing positions writer: %v", err)
		}
		if err := obsWriter.Close(); err != nil {
			log.Printf("Error closing observations writer: %v", err)
		}
	}()
	log.Printf("Starting AVL simulator on broker %s (topics %s, %s)", kafkaBroker, positionsTopic, observationsTopic)

	// Handle graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-signals
		log.Println("Shutdown signal received, stopping simulator...")
		cancel()
	}()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	vehicles := []*simVehicle{
		{id: "veh-1", speed: 55, enteredAt: time.Now()},
		{id: "veh-2", segmentIndex: 3, speed: 50, enteredAt: time.Now()},
		{id: "veh-3", segmentIndex: 7, speed: 60, enteredAt: time.Now()},
	}

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			for _, v := range vehicles {
				advance(ctx, v, now, rng, posWriter, obsWriter)
			}

		case <-ctx.Done():
			log.Println("Simulator loop stopped.")
			return
		}
	}
}

// advance moves a vehicle one tick, emitting a position report and, on
// segment completion, a travel observation plus a short dwell.
func advance(ctx context.Context, v *simVehicle, now time.Time, rng *rand.Rand, posWriter, obsWriter *kafka.Writer) {
	v.distanceAlong += v.speed * (0.8 + 0.4*rng.Float64())

	if v.distanceAlong >= segmentLen {
		traversal := now.Sub(v.enteredAt)
		emitObservation(ctx, obsWriter, v, now, "travel", traversal.Milliseconds())

		dwellMillis := int64(5000 + rng.Intn(25000))
		emitObservation(ctx, obsWriter, v, now, "dwell", dwellMillis)

		v.segmentIndex = (v.segmentIndex + 1) % segmentCount
		v.distanceAlong = 0
		v.enteredAt = now
	}

	secondsIntoDay := now.Hour()*3600 + now.Minute()*60 + now.Second()
	upcoming := make([]message.SegmentSchedule, 0, segmentCount-v.segmentIndex)
	for i := v.segmentIndex; i < segmentCount; i++ {
		upcoming = append(upcoming, message.SegmentSchedule{
			SegmentIndex:          i,
			ScheduledTravelMillis: 60_000,
			ScheduledDwellMillis:  15_000,
			LengthMeters:          segmentLen,
		})
	}

	pos := message.VehiclePosition{
		VehicleID:          v.id,
		TripID:             tripID,
		RouteID:            routeID,
		Timestamp:          message.EventTime{Time: now},
		SegmentIndex:       v.segmentIndex,
		DistanceAlongMeter: v.distanceAlong,
		SegmentLengthMeter: segmentLen,
		SecondsIntoDay:     secondsIntoDay,
		Upcoming:           upcoming,
	}
	writeJSON(ctx, posWriter, v.id, pos)
}

func emitObservation(ctx context.Context, w *kafka.Writer, v *simVehicle, now time.Time, kind string, durationMillis int64) {
	adherence := int64(-30_000 + rand.Intn(60_000))
	obs := message.SegmentObservation{
		VehicleID:          v.id,
		TripID:             tripID,
		SegmentIndex:       v.segmentIndex,
		Kind:               kind,
		ObservedAt:         message.EventTime{Time: now},
		DurationMillis:     durationMillis,
		EndAdherenceMillis: &adherence,
		SecondsIntoDay:     now.Hour()*3600 + now.Minute()*60 + now.Second(),
	}
	if kind == "dwell" {
		headway := int64(300_000 + rand.Intn(600_000))
		obs.HeadwayMillis = &headway
	}
	writeJSON(ctx, w, v.id, obs)
}

func writeJSON(ctx context.Context, w *kafka.Writer, key string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Error marshalling message: %v", err)
		return
	}
	err = w.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: data})
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Printf("Error writing message to %s: %v", w.Topic, err)
	} else if key == "veh-1" {
		fmt.Printf("produced %s\n", string(data))
	}
}
