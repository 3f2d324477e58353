//go:build integration

package main_test

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/harborline-tours/service-payments/internal/adapter"
	"github.com/harborline-tours/service-payments/internal/application"
	"github.com/harborline-tours/service-payments/internal/domain/booking"
	paymentEvents "github.com/harborline-tours/service-payments/internal/events"
	"github.com/harborline-tours/service-payments/internal/kafka"
	"github.com/harborline-tours/service-payments/internal/pricing"
	"github.com/harborline-tours/service-payments/internal/refund"
	"github.com/harborline-tours/service-payments/internal/repository"
	"github.com/harborline-tours/service-payments/internal/retry"
	"github.com/harborline-tours/service-payments/internal/saga"
)

// testInfra holds shared test infrastructure.
type testInfra struct {
	DB           *gorm.DB
	KafkaBrokers []string
	Cleanup      func()
}

// serviceStack holds the wired-up payments service components.
type serviceStack struct {
	Payments        *application.PaymentService
	Bookings        *application.BookingService
	Consumer        *paymentEvents.GatewayEventConsumer
	CleanupProducer func()
}

// seededCatalog holds the IDs of the catalog rows the tests book against.
type seededCatalog struct {
	ProductID  uuid.UUID
	ScheduleID uuid.UUID
	CheaperID  uuid.UUID
	PickupID   uuid.UUID
	Departs    time.Time
}

// setupContainers starts PostgreSQL and Kafka testcontainers and returns a connected GORM DB.
func setupContainers(t *testing.T) *testInfra {
	t.Helper()
	ctx := context.Background()

	pgReq := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "test_payments",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: pgReq,
		Started:          true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")

	pgHost, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("host=%s port=%s user=test password=test dbname=test_payments sslmode=disable", pgHost, pgPort.Port())

	// Poll until GORM can actually connect and ping.
	var db *gorm.DB
	require.Eventually(t, func() bool {
		var err error
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err != nil {
			return false
		}
		sqlDB, err := db.DB()
		if err != nil {
			return false
		}
		return sqlDB.Ping() == nil
	}, 30*time.Second, 1*time.Second, "PostgreSQL not ready for connections")

	// Enable uuid-ossp extension and auto-migrate.
	require.NoError(t, db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error)
	require.NoError(t, db.AutoMigrate(
		&repository.BookingModel{},
		&repository.PaymentModel{},
		&repository.ProductModel{},
		&repository.ScheduleModel{},
		&repository.PickupModel{},
	))

	// Start Kafka container using confluent-local (supports KRaft natively).
	kafkaContainer, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "failed to start Kafka container")

	kafkaBrokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "failed to get Kafka brokers")

	// Pre-create required topics.
	createTopics(t, kafkaBrokers, paymentEvents.TopicPaymentEvents, paymentEvents.TopicGatewayEvents)

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Kafka container: %v", err)
		}
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
	}

	return &testInfra{
		DB:           db,
		KafkaBrokers: kafkaBrokers,
		Cleanup:      cleanup,
	}
}

// setupServiceStack wires up the full payments service graph against the
// containers, with the mock Stripe adapter in place of the real gateway.
func setupServiceStack(t *testing.T, db *gorm.DB, brokers []string) *serviceStack {
	t.Helper()
	logger, _ := zap.NewDevelopment()

	bookingRepo := repository.NewBookingRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)

	mockStripe := adapter.NewMockStripeAdapter(logger)
	producer := kafka.NewProducer(brokers, logger)

	scanner := refund.NewScanner(paymentRepo)
	allocator := refund.NewAllocator(scanner)
	executor := refund.NewExecutor(paymentRepo, mockStripe, logger)
	reconciler := pricing.NewReconciler(catalogRepo)
	sagaSvc := saga.NewPaymentIntentSagaService(paymentRepo, mockStripe, logger)

	paymentSvc := application.NewPaymentService(
		bookingRepo, paymentRepo, scanner, executor, sagaSvc,
		producer, retry.DefaultPolicy(), logger,
	)
	bookingSvc := application.NewBookingService(
		bookingRepo, catalogRepo, scanner, allocator, executor,
		reconciler, sagaSvc, producer, logger,
	)

	groupID := fmt.Sprintf("test-payments-%s", uuid.New().String()[:8])
	consumer := paymentEvents.NewGatewayEventConsumer(
		kafka.NewConsumer(brokers, groupID, paymentEvents.TopicGatewayEvents, logger),
		paymentSvc,
		logger,
	)

	return &serviceStack{
		Payments:        paymentSvc,
		Bookings:        bookingSvc,
		Consumer:        consumer,
		CleanupProducer: func() { _ = producer.Close() },
	}
}

// seedCatalog inserts a tour with two departures and a pickup point. The main
// departure is 72 hours out at 10000/6000 cents; the cheaper one is 96 hours
// out at 8000/5000 cents.
func seedCatalog(t *testing.T, db *gorm.DB) seededCatalog {
	t.Helper()
	now := time.Now().UTC()

	product := repository.ProductModel{
		ID:        uuid.New(),
		Kind:      string(booking.KindTour),
		Name:      "Harbor Sunrise Cruise",
		Currency:  "USD",
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, db.Create(&product).Error, "failed to seed product")

	departs := now.Add(72 * time.Hour).Truncate(time.Second)
	schedule := repository.ScheduleModel{
		ID:              uuid.New(),
		ProductID:       product.ID,
		Departs:         departs,
		AdultPriceCents: 10000,
		ChildPriceCents: 6000,
		Capacity:        20,
	}
	cheaper := repository.ScheduleModel{
		ID:              uuid.New(),
		ProductID:       product.ID,
		Departs:         now.Add(96 * time.Hour).Truncate(time.Second),
		AdultPriceCents: 8000,
		ChildPriceCents: 5000,
		Capacity:        20,
	}
	require.NoError(t, db.Create(&schedule).Error, "failed to seed schedule")
	require.NoError(t, db.Create(&cheaper).Error, "failed to seed schedule")

	pickup := repository.PickupModel{
		ID:             uuid.New(),
		ProductID:      product.ID,
		Name:           "North Pier",
		SurchargeCents: 1500,
	}
	require.NoError(t, db.Create(&pickup).Error, "failed to seed pickup")

	return seededCatalog{
		ProductID:  product.ID,
		ScheduleID: schedule.ID,
		CheaperID:  cheaper.ID,
		PickupID:   pickup.ID,
		Departs:    departs,
	}
}

// payBooking runs the initiate/confirm flow for a booking and returns the
// completed payment's intent ID.
func payBooking(t *testing.T, stack *serviceStack, db *gorm.DB, bookingID uuid.UUID) string {
	t.Helper()
	ctx := context.Background()

	intent, err := stack.Payments.InitiatePayment(ctx, application.InitiatePaymentRequest{
		BookingID:     bookingID,
		CustomerEmail: "sam@example.com",
		CustomerName:  "Sam Lee",
	})
	require.NoError(t, err, "failed to initiate payment")

	var model repository.PaymentModel
	require.NoError(t, db.Where("id = ?", intent.PaymentID).First(&model).Error)

	_, err = stack.Payments.ConfirmPayment(ctx, model.StripePaymentIntentID)
	require.NoError(t, err, "failed to confirm payment")

	return model.StripePaymentIntentID
}

// publishTestEvent publishes a CloudEvent to Kafka.
func publishTestEvent(t *testing.T, brokers []string, topic, source, eventType string, data interface{}) {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	producer := kafka.NewProducer(brokers, logger)
	defer func() { _ = producer.Close() }()

	ce, err := kafka.NewCloudEvent(source, eventType, data)
	require.NoError(t, err, "failed to create cloud event")

	err = producer.PublishEvent(context.Background(), topic, ce)
	require.NoError(t, err, "failed to publish event")
}

// waitForRefundStatus polls the payments table until the refund_status matches.
func waitForRefundStatus(t *testing.T, db *gorm.DB, paymentIntentID, expectedStatus string, timeout time.Duration) repository.PaymentModel {
	t.Helper()
	var result repository.PaymentModel
	require.Eventually(t, func() bool {
		var model repository.PaymentModel
		err := db.Where("stripe_payment_intent_id = ?", paymentIntentID).First(&model).Error
		if err != nil {
			return false
		}
		if model.RefundStatus == expectedStatus {
			result = model
			return true
		}
		return false
	}, timeout, 200*time.Millisecond, "payment did not reach refund status %s", expectedStatus)
	return result
}

// consumeOneEvent reads from a Kafka topic until it finds an event of the expected type.
func consumeOneEvent(t *testing.T, brokers []string, topic, expectedType string, timeout time.Duration) kafka.CloudEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	groupID := fmt.Sprintf("test-assert-%s", uuid.New().String()[:8])
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafkago.FirstOffset,
	})
	defer func() { _ = reader.Close() }()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				t.Fatalf("timed out waiting for event type %q on topic %q", expectedType, topic)
			}
			continue
		}
		ce, err := kafka.ParseCloudEvent(msg.Value)
		if err != nil {
			continue
		}
		if ce.Type == expectedType {
			return ce
		}
	}
}

// createTopics pre-creates Kafka topics so producers don't fail with "Unknown Topic".
func createTopics(t *testing.T, brokers []string, topics ...string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", brokers[0])
	require.NoError(t, err, "failed to dial Kafka for topic creation")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "failed to get Kafka controller")

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, fmt.Sprintf("%d", controller.Port)))
	require.NoError(t, err, "failed to connect to Kafka controller")
	defer controllerConn.Close()

	topicConfigs := make([]kafkago.TopicConfig, len(topics))
	for i, topic := range topics {
		topicConfigs[i] = kafkago.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}
	}
	err = controllerConn.CreateTopics(topicConfigs...)
	require.NoError(t, err, "failed to create Kafka topics")

	// Give Kafka a moment to propagate topic metadata.
	time.Sleep(1 * time.Second)
}
