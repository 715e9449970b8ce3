package service

import (
	"fmt"
	"io"
	"strings"

	"leadflow_backend/internal/catalog/repository"
	"leadflow_backend/platform/apperr"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

type seedDocument struct {
	Categories []seedCategory `yaml:"categories"`
	Plans      []seedPlan     `yaml:"plans"`
}

type seedCategory struct {
	Name   string      `yaml:"name"`
	Topics []seedTopic `yaml:"topics"`
}

type seedTopic struct {
	Name      string                  `yaml:"name"`
	Templates map[string]seedTemplate `yaml:"templates"`
}

type seedTemplate struct {
	Body      string  `yaml:"body"`
	MediaURL  *string `yaml:"mediaUrl"`
	MediaMime *string `yaml:"mediaMime"`
	FileName  *string `yaml:"fileName"`
}

type seedPlan struct {
	Name             string     `yaml:"name"`
	ProductID        *uuid.UUID `yaml:"productId"`
	SourceID         *uuid.UUID `yaml:"sourceId"`
	TargetStatusCode *string    `yaml:"targetStatusCode"`
	Inactive         bool       `yaml:"inactive"`
	Steps            []seedStep `yaml:"steps"`
}

type seedStep struct {
	DelayHours int    `yaml:"delayHours"`
	Category   string `yaml:"category"`
	Topic      string `yaml:"topic"`
	Slot       string `yaml:"slot"`
}

// ParseSeed decodes a YAML catalog document. Template slots are the map
// keys A and B; step slots default to A.
func ParseSeed(r io.Reader) (repository.ImportParams, error) {
	var doc seedDocument
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return repository.ImportParams{}, apperr.BadRequest("invalid catalog document").WithDetails(err.Error())
	}

	var params repository.ImportParams
	for _, c := range doc.Categories {
		if strings.TrimSpace(c.Name) == "" {
			return repository.ImportParams{}, apperr.Validation("category name is required")
		}
		cat := repository.ImportCategory{Name: c.Name}
		for _, t := range c.Topics {
			if strings.TrimSpace(t.Name) == "" {
				return repository.ImportParams{}, apperr.Validation(fmt.Sprintf("category %q has a topic without name", c.Name))
			}
			if _, ok := t.Templates[repository.SlotA]; !ok {
				return repository.ImportParams{}, apperr.Validation(fmt.Sprintf("topic %q needs an A template", t.Name))
			}
			topic := repository.ImportTopic{Name: t.Name}
			for _, slot := range []string{repository.SlotA, repository.SlotB} {
				tpl, ok := t.Templates[slot]
				if !ok {
					continue
				}
				if tpl.MediaMime != nil && (tpl.MediaURL == nil || strings.TrimSpace(*tpl.MediaURL) == "") {
					return repository.ImportParams{}, apperr.Validation(fmt.Sprintf("topic %q template %s has mediaMime without mediaUrl", t.Name, slot))
				}
				topic.Templates = append(topic.Templates, repository.ImportTemplate{
					Slot:      slot,
					Body:      tpl.Body,
					MediaURL:  tpl.MediaURL,
					MediaMime: tpl.MediaMime,
					FileName:  tpl.FileName,
				})
			}
			for slot := range t.Templates {
				if slot != repository.SlotA && slot != repository.SlotB {
					return repository.ImportParams{}, apperr.Validation(fmt.Sprintf("topic %q has unknown slot %q", t.Name, slot))
				}
			}
			cat.Topics = append(cat.Topics, topic)
		}
		params.Categories = append(params.Categories, cat)
	}

	for _, p := range doc.Plans {
		if strings.TrimSpace(p.Name) == "" {
			return repository.ImportParams{}, apperr.Validation("plan name is required")
		}
		plan := repository.ImportPlan{
			Name:             p.Name,
			ProductID:        p.ProductID,
			SourceID:         p.SourceID,
			TargetStatusCode: p.TargetStatusCode,
			IsActive:         !p.Inactive,
		}
		for i, s := range p.Steps {
			slot := strings.ToUpper(strings.TrimSpace(s.Slot))
			if slot == "" {
				slot = repository.SlotA
			}
			if slot != repository.SlotA && slot != repository.SlotB {
				return repository.ImportParams{}, apperr.Validation(fmt.Sprintf("plan %q step %d has unknown slot %q", p.Name, i, s.Slot))
			}
			if s.DelayHours < 0 {
				return repository.ImportParams{}, apperr.Validation(fmt.Sprintf("plan %q step %d has a negative delay", p.Name, i))
			}
			plan.Steps = append(plan.Steps, repository.ImportStep{
				DelayHours: s.DelayHours,
				Category:   s.Category,
				Topic:      s.Topic,
				Slot:       slot,
			})
		}
		params.Plans = append(params.Plans, plan)
	}

	return params, nil
}
