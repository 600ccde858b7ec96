package importer

import (
	"fmt"
	"io"
	"math"
	"math/rand"
	"sort"
	"time"
)

var generatedPartyNames = []string{
	"Aurora Alliance",
	"Civic Renewal Party",
	"Meridian Union",
	"Harbor Coalition",
	"Prairie Front",
	"Summit League",
	"Beacon Movement",
	"Cascade Party",
	"Northern Compact",
	"Solidarity Circle",
	"Riverside Assembly",
	"Granite Bloc",
}

var generatedGivenNames = []string{
	"Ana", "Bruno", "Carla", "Diego", "Elisa", "Fabio", "Gloria", "Hugo",
	"Iris", "Jonas", "Lara", "Mateus", "Nadia", "Otavio", "Paula", "Rafael",
	"Sofia", "Tomas",
}

var generatedSurnames = []string{
	"Almeida", "Barros", "Cardoso", "Duarte", "Ferreira", "Gomes", "Lima",
	"Martins", "Nogueira", "Oliveira", "Pereira", "Queiroz", "Ribeiro",
	"Santos", "Teixeira", "Vieira",
}

const candidatesPerParty = 2

// generateDataset synthesizes a dataset document with a plausible count
// shape: votes arrive region by region, parties follow a perturbed rank
// curve, and historical shares sit near each party's final share. A zero
// seed picks one from the clock and prints it for reproducibility.
func generateDataset(cfg Config, out io.Writer) datasetDocument {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
		fmt.Fprintf(out, "using seed %d\n", seed)
	}
	rng := rand.New(rand.NewSource(seed))

	parties := make([]partyDocument, cfg.Parties)
	weights := make([]float64, cfg.Parties)
	for i := range parties {
		code := 10 + i
		name := fmt.Sprintf("Party %d", code)
		if i < len(generatedPartyNames) {
			name = generatedPartyNames[i]
		}
		parties[i] = partyDocument{Code: code, Name: name}
		weights[i] = (0.5 + rng.Float64()) / float64(i+1)
	}

	candidates := make([]candidateDocument, 0, cfg.Parties*candidatesPerParty)
	for _, party := range parties {
		for n := 1; n <= candidatesPerParty; n++ {
			given := generatedGivenNames[rng.Intn(len(generatedGivenNames))]
			surname := generatedSurnames[rng.Intn(len(generatedSurnames))]
			candidates = append(candidates, candidateDocument{
				Number:    party.Code*100 + n,
				Name:      given + " " + surname,
				PartyCode: party.Code,
			})
		}
	}

	regionWeights := make([]float64, cfg.Regions)
	for i := range regionWeights {
		regionWeights[i] = 0.5 + rng.Float64()
	}
	regionVotes := allocateByWeight(cfg.Votes, regionWeights)

	blocks := make([]voteBlockDocument, 0, cfg.Regions*cfg.Parties*3)
	partyTotals := make([]int64, cfg.Parties)
	local := make([]float64, cfg.Parties)
	for r, votes := range regionVotes {
		if votes <= 0 {
			continue
		}
		regionID := fmt.Sprintf("R%03d", r+1)
		for i := range local {
			local[i] = weights[i] * (0.7 + 0.6*rng.Float64())
		}
		for i, count := range allocateByWeight(votes, local) {
			if count <= 0 {
				continue
			}
			partyTotals[i] += count
			code := parties[i].Code

			// Roughly three quarters of a party's votes name a
			// candidate, the rest go to the list.
			nominal := count * 3 / 4
			first := nominal * int64(50+rng.Intn(31)) / 100
			second := nominal - first
			list := count - nominal
			if first > 0 {
				blocks = append(blocks, voteBlockDocument{
					RegionID:        regionID,
					PartyCode:       code,
					CandidateNumber: code*100 + 1,
					Kind:            "NOMINAL",
					Count:           first,
				})
			}
			if second > 0 {
				blocks = append(blocks, voteBlockDocument{
					RegionID:        regionID,
					PartyCode:       code,
					CandidateNumber: code*100 + 2,
					Kind:            "NOMINAL",
					Count:           second,
				})
			}
			if list > 0 {
				blocks = append(blocks, voteBlockDocument{
					RegionID:  regionID,
					PartyCode: code,
					Kind:      "PARTY_LIST",
					Count:     list,
				})
			}
		}
	}

	shares := make([]historicalShareDocument, cfg.Parties)
	var shareSum float64
	for i, total := range partyTotals {
		share := float64(total) / float64(cfg.Votes) * (0.8 + 0.4*rng.Float64())
		shares[i] = historicalShareDocument{PartyCode: parties[i].Code, Share: share}
		shareSum += share
	}
	if shareSum > 1 {
		scale := 0.98 / shareSum
		for i := range shares {
			shares[i].Share *= scale
		}
	}

	return datasetDocument{
		Election: electionDocument{
			Year:         cfg.Year,
			Name:         fmt.Sprintf("General Election %d", cfg.Year),
			TotalRegions: cfg.Regions,
			TotalVotes:   cfg.Votes,
			Seats:        cfg.Seats,
		},
		Parties:          parties,
		Candidates:       candidates,
		HistoricalShares: shares,
		VoteBlocks:       blocks,
	}
}

// allocateByWeight splits total into integer parts proportional to weights
// using largest remainders, so the parts always sum to total.
func allocateByWeight(total int64, weights []float64) []int64 {
	parts := make([]int64, len(weights))
	if total <= 0 || len(weights) == 0 {
		return parts
	}

	var sum float64
	for _, w := range weights {
		sum += w
	}
	if sum <= 0 {
		parts[0] = total
		return parts
	}

	type slot struct {
		index    int
		fraction float64
	}
	slots := make([]slot, len(weights))
	var assigned int64
	for i, w := range weights {
		exact := float64(total) * w / sum
		floor := math.Floor(exact)
		parts[i] = int64(floor)
		assigned += parts[i]
		slots[i] = slot{index: i, fraction: exact - floor}
	}
	sort.Slice(slots, func(a, b int) bool {
		if slots[a].fraction != slots[b].fraction {
			return slots[a].fraction > slots[b].fraction
		}
		return slots[a].index < slots[b].index
	})
	for n := int64(0); n < total-assigned; n++ {
		parts[slots[n%int64(len(slots))].index]++
	}
	return parts
}
