package manifest

import (
	"github.com/tendant/cdn-asset-pipeline/internal/assets"
	"github.com/tendant/cdn-asset-pipeline/pkg/pipeline"
)

// assetGroups groups image and flag variants by name in first-seen order
type assetGroups struct {
	index  map[string]int
	groups []pipeline.AssetGroup
}

func newAssetGroups() *assetGroups {
	return &assetGroups{index: make(map[string]int), groups: []pipeline.AssetGroup{}}
}

func (g *assetGroups) add(meta assets.FileMeta, url string) {
	i, ok := g.index[meta.Name]
	if !ok {
		i = len(g.groups)
		g.index[meta.Name] = i
		g.groups = append(g.groups, pipeline.AssetGroup{Name: meta.Name})
	}
	g.groups[i].Variants = append(g.groups[i].Variants, variantOf(meta, url))
}

// iconGroups groups icon variants by icon, then colour
type iconGroups struct {
	index  map[string]int
	colors []map[string]int
	groups []pipeline.IconGroup
}

func newIconGroups() *iconGroups {
	return &iconGroups{index: make(map[string]int)}
}

func (g *iconGroups) add(icon string, meta assets.FileMeta, url string) {
	i, ok := g.index[icon]
	if !ok {
		i = len(g.groups)
		g.index[icon] = i
		g.groups = append(g.groups, pipeline.IconGroup{Name: icon})
		g.colors = append(g.colors, make(map[string]int))
	}

	group := &g.groups[i]
	j, ok := g.colors[i][meta.Color]
	if !ok {
		j = len(group.Variants)
		g.colors[i][meta.Color] = j
		group.Variants = append(group.Variants, pipeline.IconColor{Color: meta.Color})
	}
	group.Variants[j].Assets = append(group.Variants[j].Assets, variantOf(meta, url))
}

func (g *iconGroups) result() []pipeline.IconGroup {
	if g.groups == nil {
		return []pipeline.IconGroup{}
	}
	return g.groups
}

func variantOf(meta assets.FileMeta, url string) pipeline.AssetVariant {
	return pipeline.AssetVariant{Size: meta.Size, Format: meta.Format, URL: url}
}
