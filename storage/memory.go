// Copyright 2026 The recipehub Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/alwitt/recipehub/common"
)

// memoryRecipeStore in-process RecipeStore
type memoryRecipeStore struct {
	lock    sync.RWMutex
	nextID  int64
	recipes map[int64]common.Recipe
}

// GetMemoryRecipeStore define an in-process recipe store
func GetMemoryRecipeStore() RecipeStore {
	return &memoryRecipeStore{nextID: 1, recipes: make(map[int64]common.Recipe)}
}

// copyRecipe deep copy so callers never share slices with the store
func copyRecipe(recipe common.Recipe) common.Recipe {
	dup := recipe
	dup.Ingredients = append([]common.Ingredient{}, recipe.Ingredients...)
	dup.Steps = append([]common.RecipeStep{}, recipe.Steps...)
	dup.Tips = append([]string{}, recipe.Tips...)
	if recipe.Video != nil {
		video := *recipe.Video
		if recipe.Video.Duration != nil {
			duration := *recipe.Video.Duration
			video.Duration = &duration
		}
		dup.Video = &video
	}
	return dup
}

// Save persist a new recipe
func (s *memoryRecipeStore) Save(
	_ context.Context, owner string, recipe common.Recipe,
) (common.Recipe, error) {
	if recipe.CreatedAt.IsZero() {
		recipe.CreatedAt = time.Now()
	}
	recipe.CreatedAt = recipe.CreatedAt.UTC()
	recipe.Owner = owner

	s.lock.Lock()
	defer s.lock.Unlock()
	recipe.ID = s.nextID
	s.nextID++
	s.recipes[recipe.ID] = copyRecipe(recipe)
	return copyRecipe(recipe), nil
}

// FindByOwner list the recipes of one owner
func (s *memoryRecipeStore) FindByOwner(
	_ context.Context, owner string,
) ([]common.RecipeSummary, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	summaries := []common.RecipeSummary{}
	for _, recipe := range s.recipes {
		if recipe.Owner == owner {
			summaries = append(summaries, recipe.Summary())
		}
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].ID > summaries[j].ID })
	return summaries, nil
}

// Get fetch one recipe of an owner
func (s *memoryRecipeStore) Get(
	_ context.Context, owner string, recipeID int64,
) (common.Recipe, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	recipe, ok := s.recipes[recipeID]
	if !ok || recipe.Owner != owner {
		return common.Recipe{}, ErrNotFound
	}
	return copyRecipe(recipe), nil
}

// Ready always ready
func (s *memoryRecipeStore) Ready(_ context.Context) error {
	return nil
}

// Close no-op
func (s *memoryRecipeStore) Close() error {
	return nil
}
