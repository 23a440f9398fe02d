package config

import (
	"github.com/caarlos0/env/v11"
)

// Config carries the service-level settings read from the environment.
// Experiment-level settings (epochs, batch size, frame count, ...) come from
// CLI flags and override the defaults here.
type Config struct {
	Experiment    string  `env:"EXPERIMENT_NAME"  envDefault:"baseline"`
	DataDir       string  `env:"DATA_DIR"         envDefault:"./data"`
	BatchSize     int     `env:"BATCH_SIZE"       envDefault:"16"`
	FramesCnt     int     `env:"FRAMES_CNT"       envDefault:"16"`
	ImgSize       int     `env:"IMG_SIZE"         envDefault:"112"`
	ModelType     string  `env:"MODEL_TYPE"       envDefault:"cnn-avg"`
	Epochs        int     `env:"EPOCHS"           envDefault:"5"`
	LearningRate  float64 `env:"LEARNING_RATE"    envDefault:"0.001"`
	RNNHiddenSize int     `env:"RNN_HIDDEN_SIZE"  envDefault:"128"`
	Seed          int64   `env:"SEED"             envDefault:"42"`

	Backbone        string `env:"BACKBONE"          envDefault:"conv"`
	BackboneWeights string `env:"BACKBONE_WEIGHTS"  envDefault:""`
	OnnxModelPath   string `env:"ONNX_MODEL_PATH"   envDefault:""`
	OnnxLibraryPath string `env:"ONNX_LIBRARY_PATH" envDefault:""`
	OnnxFeatureDim  int    `env:"ONNX_FEATURE_DIM"  envDefault:"512"`
	UseGPU          bool   `env:"USE_GPU"           envDefault:"false"`

	LoaderWorkers int `env:"LOADER_WORKERS" envDefault:"2"`

	DatabaseURL string `env:"DATABASE_URL" envDefault:""`

	MinIOEndpoint   string `env:"MINIO_ENDPOINT"       envDefault:""`
	MinIOAccessKey  string `env:"MINIO_ACCESS_KEY"     envDefault:"minioadmin"`
	MinIOSecretKey  string `env:"MINIO_SECRET_KEY"     envDefault:"minioadmin"`
	MinIOUseSSL     bool   `env:"MINIO_USE_SSL"        envDefault:"false"`
	MinIODataBucket string `env:"MINIO_DATA_BUCKET"    envDefault:"datasets"`
	MinIODataPrefix string `env:"MINIO_DATA_PREFIX"    envDefault:""`

	RabbitMQURL         string `env:"RABBITMQ_URL"          envDefault:""`
	RabbitMQExchange    string `env:"RABBITMQ_EXCHANGE"     envDefault:"vcls.training"`
	RabbitMQStatusQueue string `env:"RABBITMQ_STATUS_QUEUE" envDefault:"training.status"`

	SMTPHost       string `env:"SMTP_HOST"       envDefault:""`
	SMTPPort       int    `env:"SMTP_PORT"       envDefault:"1025"`
	SMTPFrom       string `env:"SMTP_FROM"       envDefault:"noreply@vcls.local"`
	NotificationTo string `env:"NOTIFICATION_TO" envDefault:""`

	MetricsPort  int    `env:"METRICS_PORT"  envDefault:"8083"`
	OTLPEndpoint string `env:"OTLP_ENDPOINT" envDefault:""`
	LogLevel     string `env:"LOG_LEVEL"     envDefault:"info"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
