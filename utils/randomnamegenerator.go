package utils

import (
	"math/rand"

	"github.com/Pallinder/go-randomdata"
)

// RandomNameGenerator hands out unique readable names. Every generator starts
// from the same seed so repeated runs give the same names.
type RandomNameGenerator struct {
	used map[string]struct{}
}

func (rng *RandomNameGenerator) init() {
	if rng.used == nil {
		rng.used = make(map[string]struct{})
		randomdata.CustomRand(rand.New(rand.NewSource(0)))
	}
}

// Reserve marks name as taken so RandomName never returns it.
func (rng *RandomNameGenerator) Reserve(name string) {
	rng.init()
	rng.used[name] = struct{}{}
}

func (rng *RandomNameGenerator) RandomName() string {
	rng.init()
	for {
		name := randomdata.SillyName()
		// avoid duplicate names
		if _, exists := rng.used[name]; !exists {
			rng.used[name] = struct{}{}
			return name
		}
	}
}
