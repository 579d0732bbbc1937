// Copyright (C) 2025 Lantern AI (oss@lanternstudio.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package arrange orders curated findings into report sections.
package arrange

import (
	"sort"

	"github.com/LanternAI/LanternStudio/services/studio/research"
)

// Arrange orders findings into positioned sections.
//
// # Description
//
// Sections are ordered by the narrative role of their visualization:
// composition first, then frequency, distribution, temporal, relation, and
// matrix views last. The sort is stable, so findings sharing a role keep the
// curator's order, and positions are assigned contiguously from zero.
func Arrange(findings []research.Finding) []research.Section {
	ordered := append([]research.Finding{}, findings...)
	sort.SliceStable(ordered, func(a, b int) bool {
		return ordered[a].Question.Visualization.Kind() < ordered[b].Question.Visualization.Kind()
	})
	sections := make([]research.Section, len(ordered))
	for i, f := range ordered {
		sections[i] = research.Section{Position: i, Finding: f}
	}
	return sections
}
