package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/parquet-go/parquet-go"

	"github.com/brensch/twenty48/executor/genetic"
)

var ErrCorruptPopulation = errors.New("corrupt population file")

// PopulationRow is one individual of a saved population.
type PopulationRow struct {
	Generation int32  `parquet:"generation"`
	Index      int32  `parquet:"index"`
	Moves      string `parquet:"moves"`
}

const populationSchema = "population_v1"

// PopulationFile saves and loads a genetic.Population at Path.
// It implements genetic.Store.
type PopulationFile struct {
	Path string
}

var _ genetic.Store = (*PopulationFile)(nil)

// Save replaces the file atomically. The generation is kept in the file
// metadata so an empty population still round-trips.
func (p *PopulationFile) Save(pop genetic.Population) error {
	if err := os.MkdirAll(filepath.Dir(p.Path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	rows := make([]PopulationRow, len(pop.Individuals))
	for i, ind := range pop.Individuals {
		rows[i] = PopulationRow{Generation: int32(pop.Generation), Index: int32(i), Moves: ind.String()}
	}

	tmpPath := p.Path + ".tmp"
	_ = os.Remove(tmpPath)

	if err := parquet.WriteFile(tmpPath, rows,
		compression(),
		parquet.KeyValueMetadata("schema", populationSchema),
		parquet.KeyValueMetadata("generation", strconv.Itoa(pop.Generation)),
	); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write parquet: %w", err)
	}

	if err := os.Rename(tmpPath, p.Path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename parquet: %w", err)
	}
	return nil
}

// Load returns the saved population. A missing file yields an empty
// population at generation 0 and no error. Unreadable content yields the same
// empty population and an error wrapping ErrCorruptPopulation.
func (p *PopulationFile) Load() (genetic.Population, error) {
	f, err := os.Open(p.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return genetic.Population{}, nil
	}
	if err != nil {
		return genetic.Population{}, fmt.Errorf("open population: %w", err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return genetic.Population{}, fmt.Errorf("stat population: %w", err)
	}
	pf, err := parquet.OpenFile(f, st.Size())
	if err != nil {
		return genetic.Population{}, fmt.Errorf("%w: %v", ErrCorruptPopulation, err)
	}

	generation := 0
	if v, ok := pf.Lookup("generation"); ok {
		generation, err = strconv.Atoi(v)
		if err != nil || generation < 0 {
			return genetic.Population{}, fmt.Errorf("%w: generation %q", ErrCorruptPopulation, v)
		}
	}

	rows, err := parquet.ReadFile[PopulationRow](p.Path)
	if err != nil {
		return genetic.Population{}, fmt.Errorf("%w: %v", ErrCorruptPopulation, err)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Index < rows[j].Index })

	pop := genetic.Population{Generation: generation}
	for _, row := range rows {
		ind, err := genetic.ParseIndividual(row.Moves)
		if err != nil {
			return genetic.Population{}, fmt.Errorf("%w: individual %d: %v", ErrCorruptPopulation, row.Index, err)
		}
		pop.Individuals = append(pop.Individuals, ind)
	}
	return pop, nil
}
