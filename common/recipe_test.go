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

package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResultPayloadConversion(t *testing.T) {
	assert := assert.New(t)

	now := time.Now().UTC()

	// Case 0: empty recipe section
	{
		recipe := ResultPayload{Success: true}.ToRecipe("cook@example.com", now)
		assert.Equal("cook@example.com", recipe.Owner)
		assert.Empty(recipe.Title)
		assert.NotNil(recipe.Ingredients)
		assert.NotNil(recipe.Steps)
		assert.NotNil(recipe.Tips)
		assert.Nil(recipe.Video)
	}

	// Case 1: full result
	{
		duration := 512
		payload := ResultPayload{
			Success: true,
			Recipe: &ExtractedRecipe{
				Title:       "Kimchi stew",
				Servings:    "2",
				TotalTime:   "30 min",
				Difficulty:  "easy",
				Ingredients: []Ingredient{{Name: "kimchi", Amount: "200", Unit: "g"}},
				Steps: []RecipeStep{
					{StepNumber: 1, Instruction: "Slice pork", Timestamp: 12.5},
					{StepNumber: 2, Instruction: "Boil", Timestamp: 40},
				},
				Tips: []string{"Use aged kimchi"},
			},
			VideoInfo: &VideoInfo{VideoID: "abc", Title: "stew", Duration: &duration},
		}
		recipe := payload.ToRecipe("cook@example.com", now)
		assert.Equal("Kimchi stew", recipe.Title)
		assert.Len(recipe.Ingredients, 1)
		assert.Len(recipe.Steps, 2)
		assert.Equal([]string{"Use aged kimchi"}, recipe.Tips)
		assert.NotNil(recipe.Video)
		assert.Equal("abc", recipe.Video.VideoID)
		// The conversion must not alias the payload
		payload.VideoInfo.Title = "changed"
		assert.Equal("stew", recipe.Video.Title)

		summary := recipe.Summary()
		assert.Equal("Kimchi stew", summary.Title)
		assert.Equal("easy", summary.Difficulty)
		assert.Equal(now, summary.CreatedAt)
	}
}
