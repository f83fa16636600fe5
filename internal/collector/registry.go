package collector

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const defaultUserAgent = "TrendingNewsBot/1.0"

const (
	TypeRSS        = "rss"
	TypeHTML       = "html"
	TypeHackerNews = "hackernews"
)

// SourceConfig 对应 sources.yaml 中的一个采集源
type SourceConfig struct {
	Name      string        `yaml:"name"`
	Type      string        `yaml:"type"`
	URL       string        `yaml:"url"`
	Enabled   *bool         `yaml:"enabled"`
	MaxItems  int           `yaml:"max_items"`
	Selectors HTMLSelectors `yaml:"selectors"`
}

// SourcesFile 是 sources.yaml 的顶层结构
type SourcesFile struct {
	UserAgent string         `yaml:"user_agent"`
	Sources   []SourceConfig `yaml:"sources"`
}

// DefaultSources 在没有配置文件时使用
var DefaultSources = SourcesFile{
	Sources: []SourceConfig{
		{Name: "Hindustan Times", Type: TypeRSS, URL: "https://www.hindustantimes.com/feeds/rss/latest/rssfeed.xml"},
	},
}

// LoadScrapers 从 YAML 文件构建采集源列表，顺序即注册顺序。文件不存在时使用 DefaultSources
func LoadScrapers(path string) ([]Scraper, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return BuildScrapers(DefaultSources)
	}
	if err != nil {
		return nil, fmt.Errorf("read sources file %s: %w", path, err)
	}
	return ParseScrapers(data)
}

// ParseScrapers 解析 YAML 内容并构建采集源
func ParseScrapers(data []byte) ([]Scraper, error) {
	var file SourcesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse sources file: %w", err)
	}
	return BuildScrapers(file)
}

// BuildScrapers 校验配置并按顺序实例化，禁用的源被跳过
func BuildScrapers(file SourcesFile) ([]Scraper, error) {
	ua := file.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	seen := make(map[string]struct{}, len(file.Sources))
	scrapers := make([]Scraper, 0, len(file.Sources))
	for i, sc := range file.Sources {
		name := strings.TrimSpace(sc.Name)
		if name == "" {
			return nil, fmt.Errorf("source #%d: name is required", i+1)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("source %q: duplicate name", name)
		}
		seen[name] = struct{}{}

		if sc.Enabled != nil && !*sc.Enabled {
			continue
		}

		switch strings.ToLower(sc.Type) {
		case TypeRSS, "":
			if sc.URL == "" {
				return nil, fmt.Errorf("source %q: url is required", name)
			}
			scrapers = append(scrapers, NewRSSScraper(name, sc.URL, ua))
		case TypeHTML:
			if sc.URL == "" {
				return nil, fmt.Errorf("source %q: url is required", name)
			}
			if sc.Selectors.Item == "" || sc.Selectors.Title == "" {
				return nil, fmt.Errorf("source %q: selectors.item and selectors.title are required", name)
			}
			scrapers = append(scrapers, NewHTMLScraper(name, sc.URL, ua, sc.Selectors))
		case TypeHackerNews:
			scrapers = append(scrapers, NewHackerNewsFetcher(name, sc.URL, sc.MaxItems))
		default:
			return nil, fmt.Errorf("source %q: unknown type %q", name, sc.Type)
		}
	}
	return scrapers, nil
}
