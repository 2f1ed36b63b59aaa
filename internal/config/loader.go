package config

const dotEnvFile = ".env"

// LoadFromEnv reads an optional .env file, then the process environment.
func LoadFromEnv() (Config, error) {
	if err := loadDotEnv(); err != nil {
		return Config{}, err
	}
	return Load(FromEnviron())
}

func LoadConsumerFromEnv() (ConsumerConfig, error) {
	if err := loadDotEnv(); err != nil {
		return ConsumerConfig{}, err
	}
	return LoadConsumer(FromEnviron())
}
