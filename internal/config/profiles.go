package config

import (
	"fmt"
	"maps"
	"os"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"orderly/normalization"
	"orderly/normalization/algorithms"
)

// ProfileFile содержимое YAML-файла профилей нормализации.
//
//	profiles:
//	  sku:
//	    base: sku
//	    stop_words: [pcs, pack]
//	    abbreviations: {kb: keyboard}
//	    brand_aliases: {hp: hewlett packard}
//	    rules:
//	      - {name: inch, pattern: '(\d+)"', replacement: '$1 inch'}
//	    stem: false
type ProfileFile struct {
	Profiles map[string]ProfileSpec `yaml:"profiles"`
}

// ProfileSpec описание одного профиля. Пустые поля наследуются от базового профиля.
type ProfileSpec struct {
	// Base базовый профиль: sku, vendor или default
	Base string `yaml:"base"`
	// StopWords дополнительные стоп-слова
	StopWords []string `yaml:"stop_words"`
	// ReplaceStopWords заменяет базовый список вместо дополнения
	ReplaceStopWords bool              `yaml:"replace_stop_words"`
	Abbreviations    map[string]string `yaml:"abbreviations"`
	BrandAliases     map[string]string `yaml:"brand_aliases"`
	Rules            []RuleSpec        `yaml:"rules"`
	FoldAccents      *bool             `yaml:"fold_accents"`
	Stem             bool              `yaml:"stem"`
	AlphaOnly        bool              `yaml:"alpha_only"`
}

// RuleSpec дополнительное правило замены, выполняется после базовых
type RuleSpec struct {
	Name        string `yaml:"name"`
	Pattern     string `yaml:"pattern"`
	Literal     string `yaml:"literal"`
	Replacement string `yaml:"replacement"`
}

// LoadProfiles читает и разбирает файл профилей
func LoadProfiles(path string) (*ProfileFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile file: %w", err)
	}
	return ParseProfiles(data)
}

// ParseProfiles разбирает YAML профилей и проверяет, что все профили собираются
func ParseProfiles(data []byte) (*ProfileFile, error) {
	var file ProfileFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse profile file: %w", err)
	}
	for name := range file.Profiles {
		if _, err := file.Build(name); err != nil {
			return nil, err
		}
	}
	return &file, nil
}

// Build собирает algorithms.Profile по имени
func (f *ProfileFile) Build(name string) (algorithms.Profile, error) {
	spec, ok := f.Profiles[name]
	if !ok {
		return algorithms.Profile{}, fmt.Errorf("profile %q not found", name)
	}

	var profile algorithms.Profile
	switch base := strings.ToLower(spec.Base); base {
	case "", name:
		profile = baseProfile(name)
	case "sku", "vendor", "default":
		profile = baseProfile(base)
	default:
		return algorithms.Profile{}, fmt.Errorf("profile %q: unknown base %q", name, spec.Base)
	}
	profile.Name = name

	if spec.ReplaceStopWords {
		profile.StopWords = algorithms.StopWordsFrom(spec.StopWords)
	} else {
		for _, w := range spec.StopWords {
			profile.StopWords[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
		}
	}

	abbreviations := maps.Clone(profile.Abbreviations)
	if abbreviations == nil {
		abbreviations = map[string]string{}
	}
	maps.Copy(abbreviations, spec.Abbreviations)
	maps.Copy(abbreviations, spec.BrandAliases)
	profile.Abbreviations = abbreviations

	rules := slices.Clone(profile.Rules)
	for i, rs := range spec.Rules {
		rule, err := rs.build()
		if err != nil {
			return algorithms.Profile{}, fmt.Errorf("profile %q rule #%d: %w", name, i+1, err)
		}
		rules = append(rules, rule)
	}
	profile.Rules = rules

	if spec.FoldAccents != nil {
		profile.FoldAccents = *spec.FoldAccents
	}
	profile.Stem = spec.Stem
	profile.AlphaOnly = spec.AlphaOnly

	return profile, nil
}

func baseProfile(name string) algorithms.Profile {
	switch name {
	case "sku":
		return algorithms.SKUProfile()
	case "vendor":
		return algorithms.VendorProfile()
	default:
		return algorithms.DefaultProfile()
	}
}

func (rs RuleSpec) build() (algorithms.ReplacementRule, error) {
	rule := algorithms.ReplacementRule{Name: rs.Name, Literal: rs.Literal, Replacement: rs.Replacement}
	switch {
	case rs.Pattern != "" && rs.Literal != "":
		return rule, fmt.Errorf("pattern and literal are mutually exclusive")
	case rs.Pattern != "":
		// Текст к этому моменту уже в нижнем регистре
		re, err := regexp.Compile(rs.Pattern)
		if err != nil {
			return rule, fmt.Errorf("invalid pattern: %w", err)
		}
		rule.Pattern = re
	case rs.Literal == "":
		return rule, fmt.Errorf("pattern or literal is required")
	}
	return rule, nil
}

// EngineOptions строит нормализаторы с LRU-кэшем для профилей, чье имя совпадает с видом сущности
func (f *ProfileFile) EngineOptions(cacheSize int) ([]normalization.EngineOption, error) {
	var options []normalization.EngineOption
	for _, kind := range []normalization.EntityKind{normalization.EntityKindSKU, normalization.EntityKindVendor} {
		if _, ok := f.Profiles[string(kind)]; !ok {
			continue
		}
		profile, err := f.Build(string(kind))
		if err != nil {
			return nil, err
		}
		cached, err := algorithms.NewCachedNormalizer(algorithms.NewTextNormalizer(profile), cacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create normalizer cache: %w", err)
		}
		options = append(options, normalization.WithNormalizer(kind, cached))
	}
	return options, nil
}
