package tracker

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"capatrack/internal/errs"
)

// Seed files describe an initial tenant dataset in TOML, used by the
// CLI to stand up demo or test environments. Entities are created
// through the normal creation workflow, so every seeded entity gets
// its "created" ledger entry.

type seedTask struct {
	Title string `toml:"title"`
}

type seedCapa struct {
	Key         string     `toml:"key"`
	Title       string     `toml:"title"`
	Description string     `toml:"description"`
	Finding     string     `toml:"finding"`
	Tasks       []seedTask `toml:"tasks"`
}

type seedFinding struct {
	Key         string `toml:"key"`
	Title       string `toml:"title"`
	Description string `toml:"description"`
}

type seedFile struct {
	Tenant   string        `toml:"tenant"`
	Actor    string        `toml:"actor"`
	Findings []seedFinding `toml:"findings"`
	Capas    []seedCapa    `toml:"capas"`
}

func loadSeedFile(path string) (seedFile, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return seedFile{}, errors.New("seed file is required")
	}

	raw, err := os.ReadFile(trimmed)
	if err != nil {
		return seedFile{}, errs.Wrapf(err, "read seed file %q", trimmed)
	}

	var seed seedFile
	if err := toml.Unmarshal(raw, &seed); err != nil {
		return seedFile{}, errs.Wrapf(err, "parse seed file %q", trimmed)
	}

	if strings.TrimSpace(seed.Tenant) == "" {
		return seedFile{}, errors.New("seed file: tenant is required")
	}
	if strings.TrimSpace(seed.Actor) == "" {
		return seedFile{}, errors.New("seed file: actor is required")
	}
	return seed, nil
}

type SeedResult struct {
	Findings int
	Capas    int
	Tasks    int
}

// Seed loads a TOML seed file and creates its findings, CAPAs and
// tasks. CAPA finding references use the file-local finding keys.
func (s *Service) Seed(ctx context.Context, path string) (SeedResult, error) {
	if err := s.checkWiring(ctx); err != nil {
		return SeedResult{}, err
	}

	seed, err := loadSeedFile(path)
	if err != nil {
		return SeedResult{}, err
	}

	var result SeedResult
	findingIDsByKey := make(map[string]string, len(seed.Findings))

	for _, finding := range seed.Findings {
		created, err := s.CreateFinding(ctx, CreateFindingInput{
			TenantID:    seed.Tenant,
			Title:       finding.Title,
			Description: finding.Description,
			ActorID:     seed.Actor,
		})
		if err != nil {
			return result, errs.Wrapf(err, "seed finding %q", finding.Title)
		}
		if key := strings.TrimSpace(finding.Key); key != "" {
			findingIDsByKey[key] = created.FindingID
		}
		result.Findings++
	}

	for _, capa := range seed.Capas {
		findingID := ""
		if key := strings.TrimSpace(capa.Finding); key != "" {
			resolved, ok := findingIDsByKey[key]
			if !ok {
				return result, errs.Wrapf(errors.New("unknown finding key"), "seed capa %q references %q", capa.Title, key)
			}
			findingID = resolved
		}

		created, err := s.CreateCorrectiveAction(ctx, CreateCorrectiveActionInput{
			TenantID:    seed.Tenant,
			Title:       capa.Title,
			Description: capa.Description,
			FindingID:   findingID,
			ActorID:     seed.Actor,
		})
		if err != nil {
			return result, errs.Wrapf(err, "seed capa %q", capa.Title)
		}
		result.Capas++

		for _, task := range capa.Tasks {
			if _, err := s.AddTask(ctx, AddTaskInput{
				TenantID: seed.Tenant,
				CapaID:   created.CapaID,
				Title:    task.Title,
				ActorID:  seed.Actor,
			}); err != nil {
				return result, errs.Wrapf(err, "seed task %q", task.Title)
			}
			result.Tasks++
		}
	}

	return result, nil
}
