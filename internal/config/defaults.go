package config

import "github.com/spf13/viper"

func setDefaults() {
	viper.SetDefault("environment", "dev")
	viper.SetDefault("output_dir", "eval_results")
	viper.SetDefault("gpu_ids", []int{0})
	viper.SetDefault("port_start", 8000)
	viper.SetDefault("max_tokens", 256)
	viper.SetDefault("temperature", 0.7)
	viper.SetDefault("threads", 10)
	viper.SetDefault("progress", true)

	viper.SetDefault("serving.command", []string{
		"python3", "-m", "vllm.entrypoints.openai.api_server",
	})
	viper.SetDefault("serving.health_path", "/health")
	viper.SetDefault("serving.ready_timeout", "5m")
	viper.SetDefault("serving.poll_interval", "2s")
	viper.SetDefault("serving.stop_timeout", "30s")
}
