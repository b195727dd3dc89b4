package runner

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/zxia545/sample-book-questions-gen-and-eval/internal/config"
)

// JobsFromConfig resolves the model lanes of a run. Precedence: a models
// directory (one lane per subdirectory), then an explicit model path, then
// remote mode against the configured API base.
func JobsFromConfig(cfg *config.Config) ([]ModelJob, error) {
	if cfg.ModelsDir != "" {
		entries, err := os.ReadDir(cfg.ModelsDir)
		if err != nil {
			return nil, fmt.Errorf("read models dir: %w", err)
		}

		var jobs []ModelJob
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			jobs = append(jobs, ModelJob{
				Name: entry.Name(),
				Path: filepath.Join(cfg.ModelsDir, entry.Name()),
			})
		}
		if len(jobs) == 0 {
			return nil, fmt.Errorf("models dir %s contains no model subdirectories", cfg.ModelsDir)
		}
		return jobs, nil
	}

	if cfg.ModelPath != "" {
		name := cfg.ModelName
		if name == "" {
			name = filepath.Base(cfg.ModelPath)
		}
		return []ModelJob{{Name: name, Path: cfg.ModelPath}}, nil
	}

	if cfg.APIBase != "" {
		if cfg.ModelName == "" {
			return nil, fmt.Errorf("model_name is required in remote mode")
		}
		return []ModelJob{{Name: cfg.ModelName}}, nil
	}

	return nil, fmt.Errorf("no models configured: set models_dir, model_path or api_base")
}
