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
	"errors"
	"fmt"
	"time"

	"github.com/alwitt/recipehub/common"
)

// ErrNotFound the requested recipe does not exist for that owner
var ErrNotFound = errors.New("recipe not found")

// RecipeStore persists extracted recipes per owner
type RecipeStore interface {
	// Save persist a new recipe, returning it with its assigned ID
	Save(ctxt context.Context, owner string, recipe common.Recipe) (common.Recipe, error)
	// FindByOwner list the recipes of one owner, newest first
	FindByOwner(ctxt context.Context, owner string) ([]common.RecipeSummary, error)
	// Get fetch one recipe of an owner
	Get(ctxt context.Context, owner string, recipeID int64) (common.Recipe, error)
	// Ready check the store can serve requests
	Ready(ctxt context.Context) error
	// Close release the store
	Close() error
}

// GetRecipeStore define a recipe store based on config
func GetRecipeStore(cfg common.StorageConfig) (RecipeStore, error) {
	switch cfg.Driver {
	case "sqlite":
		return GetSQLiteRecipeStore(
			cfg.Path, time.Duration(cfg.BusyTimeoutMS)*time.Millisecond,
		)
	case "memory":
		return GetMemoryRecipeStore(), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver '%s'", cfg.Driver)
	}
}
