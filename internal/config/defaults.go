package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Corpus.MetadataPath == "" {
		cfg.Corpus.MetadataPath = "/usr/local/var/ruiji/data/movies_cleaned.csv"
	}
	if cfg.Corpus.VectorsPath == "" {
		cfg.Corpus.VectorsPath = "/usr/local/var/ruiji/data/movie_vectors.bin"
	}
	if cfg.Recommend.DefaultTopN == 0 {
		cfg.Recommend.DefaultTopN = 5
	}
	if cfg.Recommend.MinTopN == 0 {
		cfg.Recommend.MinTopN = 3
	}
	if cfg.Recommend.MaxTopN == 0 {
		cfg.Recommend.MaxTopN = 15
	}
	if cfg.Recommend.CacheSize == 0 {
		cfg.Recommend.CacheSize = 1000
	}
	if cfg.Recommend.CacheTTL == 0 {
		cfg.Recommend.CacheTTL = 10 * time.Minute
	}
	if cfg.Poster.BaseURL == "" {
		cfg.Poster.BaseURL = "https://api.themoviedb.org/3"
	}
	if cfg.Poster.ImageBaseURL == "" {
		cfg.Poster.ImageBaseURL = "https://image.tmdb.org/t/p/w500"
	}
	if cfg.Poster.Timeout == 0 {
		cfg.Poster.Timeout = 5 * time.Second
	}
	if cfg.Poster.CacheSize == 0 {
		cfg.Poster.CacheSize = 10000
	}
	if cfg.Poster.CacheTTL == 0 {
		cfg.Poster.CacheTTL = 24 * time.Hour
	}
	if cfg.Poster.RequestsPerSecond == 0 {
		cfg.Poster.RequestsPerSecond = 20
	}
	if cfg.Poster.MaxPosters == 0 {
		cfg.Poster.MaxPosters = 5
	}
}
