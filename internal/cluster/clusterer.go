// Package cluster groups enriched rules into decision units. When every
// rule carries an embedding the batch is clustered semantically by the
// configured method; a single rule without one routes the whole batch to
// structural grouping by file and type.
package cluster

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/rulemap/internal/config"
	"github.com/fyrsmithlabs/rulemap/internal/logging"
	"github.com/fyrsmithlabs/rulemap/internal/rules"
)

// structuralConfidence is the fixed cohesion score of fallback groups;
// shared file and type is weaker evidence than embedding proximity.
const structuralConfidence = 0.7

// Clusterer groups rules into RuleGroups.
type Clusterer struct {
	cfg    config.ClusteringConfig
	logger *logging.Logger
}

// New creates a clusterer for the given configuration.
func New(cfg config.ClusteringConfig, logger *logging.Logger) *Clusterer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Clusterer{cfg: cfg, logger: logger.Named("cluster")}
}

// Cluster partitions rules into groups. Semantic clustering requires a
// complete embedding set: if any rule lacks one, the entire batch falls
// back to structural grouping so coverage never depends on partial
// enrichment. Group ids are assigned in final order, so identical input
// yields identical ids.
func (c *Clusterer) Cluster(rs []*rules.Rule) []*rules.RuleGroup {
	if len(rs) == 0 {
		return nil
	}

	embedded := true
	for _, r := range rs {
		if len(r.Embedding) == 0 {
			embedded = false
			break
		}
	}

	var groups []*rules.RuleGroup
	if embedded {
		groups = c.semanticGroups(rs)
	} else {
		c.logger.Warn("incomplete embeddings, grouping whole batch structurally",
			zap.Int("rules", len(rs)),
		)
		groups = c.structuralGroups(rs)
	}

	for i, g := range groups {
		g.ID = fmt.Sprintf("group_%d", i+1)
	}

	c.logger.Info("clustering complete",
		zap.String("method", c.cfg.Method),
		zap.Int("rules", len(rs)),
		zap.Bool("semantic", embedded),
		zap.Int("groups", len(groups)),
	)
	return groups
}

func (c *Clusterer) semanticGroups(rs []*rules.Rule) []*rules.RuleGroup {
	if len(rs) == 0 {
		return nil
	}

	vectors := make([][]float32, len(rs))
	for i, r := range rs {
		vectors[i] = r.Embedding
	}

	var clusters [][]int
	switch c.cfg.Method {
	case config.MethodDBSCAN:
		var noise []int
		clusters, noise = dbscan(vectors, c.cfg.Eps, c.cfg.MinSamples)
		clusters = c.applyNoisePolicy(clusters, noise, rs)
	case config.MethodHierarchical:
		clusters = hierarchical(vectors, c.cfg.Clusters)
	default:
		clusters = kmeans(vectors, c.cfg.Clusters)
	}

	groups := make([]*rules.RuleGroup, 0, len(clusters))
	for _, members := range clusters {
		group := make([]*rules.Rule, len(members))
		for i, idx := range members {
			group[i] = rs[idx]
		}
		groups = append(groups, buildSemanticGroup(group))
	}
	return groups
}

func (c *Clusterer) applyNoisePolicy(clusters [][]int, noise []int, rs []*rules.Rule) [][]int {
	if len(noise) == 0 {
		return clusters
	}

	if c.cfg.NoisePolicy == config.NoiseIsolate {
		for _, idx := range noise {
			clusters = append(clusters, []int{idx})
		}
		return clusters
	}

	ids := make([]string, len(noise))
	for i, idx := range noise {
		ids[i] = rs[idx].ID
	}
	c.logger.Warn("dropping density noise points",
		zap.Int("count", len(noise)),
		zap.Strings("rule_ids", ids),
	)
	return clusters
}

func buildSemanticGroup(members []*rules.Rule) *rules.RuleGroup {
	vectors := make([][]float32, len(members))
	for i, r := range members {
		vectors[i] = r.Embedding
	}
	cent := centroid(vectors)

	confidence := 1.0
	if len(members) > 1 {
		var sum float64
		for _, vec := range vectors {
			sum += CosineSimilarity(vec, cent)
		}
		confidence = sum / float64(len(members))
		if confidence < 0 {
			confidence = 0
		}
		if confidence > 1 {
			confidence = 1
		}
	}

	category := inferCategory(members)
	g := &rules.RuleGroup{
		Name:        groupName(members, category),
		Description: fmt.Sprintf("%d related %s rules", len(members), category),
		Rules:       members,
		Category:    category,
		Confidence:  confidence,
		Centroid:    cent,
	}
	return g
}

func (c *Clusterer) structuralGroups(rs []*rules.Rule) []*rules.RuleGroup {
	if len(rs) == 0 {
		return nil
	}

	type key struct {
		file string
		typ  rules.Type
	}
	byKey := make(map[key][]*rules.Rule)
	var order []key
	for _, r := range rs {
		k := key{file: r.Source.FilePath, typ: r.Type}
		if _, ok := byKey[k]; !ok {
			order = append(order, k)
		}
		byKey[k] = append(byKey[k], r)
	}
	sort.Slice(order, func(i, j int) bool {
		if order[i].file != order[j].file {
			return order[i].file < order[j].file
		}
		return order[i].typ < order[j].typ
	})

	groups := make([]*rules.RuleGroup, 0, len(order))
	for _, k := range order {
		members := byKey[k]
		base := strings.TrimSuffix(filepath.Base(k.file), filepath.Ext(k.file))
		groups = append(groups, &rules.RuleGroup{
			Name:        fmt.Sprintf("%s %s rules", base, k.typ),
			Description: fmt.Sprintf("%d %s rules from %s", len(members), k.typ, filepath.Base(k.file)),
			Rules:       members,
			Category:    string(k.typ),
			Confidence:  structuralConfidence,
		})
	}
	return groups
}

// inferCategory labels a group by its most frequent domain-concept tag,
// title-cased; groups whose members carry no tags fall back to the
// dominant rule type.
func inferCategory(members []*rules.Rule) string {
	counts := make(map[string]int)
	for _, r := range members {
		tags := r.Metadata[rules.MetadataDomainConcepts]
		if tags == "" {
			continue
		}
		for _, tag := range strings.Split(tags, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				counts[tag]++
			}
		}
	}

	var best string
	bestCount := -1
	for tag, n := range counts {
		if n > bestCount || (n == bestCount && tag < best) {
			best = tag
			bestCount = n
		}
	}
	if best == "" {
		return dominantCategory(members)
	}
	return strings.ToUpper(best[:1]) + best[1:]
}

// dominantCategory is the most frequent member rule type; ties resolve
// to the lexically smallest type for stable output.
func dominantCategory(members []*rules.Rule) string {
	counts := make(map[rules.Type]int)
	for _, r := range members {
		counts[r.Type]++
	}
	var best rules.Type
	bestCount := -1
	for typ, n := range counts {
		if n > bestCount || (n == bestCount && typ < best) {
			best = typ
			bestCount = n
		}
	}
	return string(best)
}

// groupName derives a display name from the most referenced table, or
// the category alone when members reference no tables.
func groupName(members []*rules.Rule, category string) string {
	counts := make(map[string]int)
	for _, r := range members {
		for _, t := range r.Tables {
			counts[t]++
		}
	}
	var top string
	topCount := -1
	for t, n := range counts {
		if n > topCount || (n == topCount && t < top) {
			top = t
			topCount = n
		}
	}
	if top == "" {
		return category + " rules"
	}
	return fmt.Sprintf("%s %s rules", top, category)
}
