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

import "time"

// ===============================================================================
// Extraction job

// ExtractionRequest is the request to start analyzing one cooking video
type ExtractionRequest struct {
	// URL is the video URL
	URL string `json:"url" validate:"required,url"`
}

// JobCreated is the response after an extraction job is accepted
type JobCreated struct {
	JobID   string `json:"jobId"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// JobStatus is the state of one extraction job as reported by the worker
type JobStatus struct {
	JobID    string `json:"jobId"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Message  string `json:"message,omitempty"`
	VideoID  string `json:"videoId,omitempty"`
}

// ===============================================================================
// Recipe

// Ingredient is one ingredient of a recipe
type Ingredient struct {
	Name   string `json:"name"`
	Amount string `json:"amount"`
	Unit   string `json:"unit"`
	Note   string `json:"note"`
}

// RecipeStep is one cooking step, anchored to a video timestamp
type RecipeStep struct {
	StepNumber  int     `json:"step_number"`
	Instruction string  `json:"instruction"`
	Timestamp   float64 `json:"timestamp"`
	Duration    string  `json:"duration"`
	Details     string  `json:"details"`
	Tips        string  `json:"tips"`
}

// VideoInfo describes the source video
type VideoInfo struct {
	VideoID  string `json:"video_id"`
	Title    string `json:"title"`
	Duration *int   `json:"duration,omitempty"`
	URL      string `json:"url"`
}

// Recipe is a persisted recipe owned by one user
type Recipe struct {
	ID          int64        `json:"recipeId"`
	Owner       string       `json:"-"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Servings    string       `json:"servings"`
	TotalTime   string       `json:"total_time"`
	Difficulty  string       `json:"difficulty"`
	Video       *VideoInfo   `json:"video_info,omitempty"`
	Ingredients []Ingredient `json:"ingredients"`
	Steps       []RecipeStep `json:"steps"`
	Tips        []string     `json:"tips"`
	CreatedAt   time.Time    `json:"created_at"`
}

// RecipeSummary is the list view of a recipe
type RecipeSummary struct {
	ID         int64     `json:"recipeId"`
	Title      string    `json:"title"`
	Difficulty string    `json:"difficulty"`
	TotalTime  string    `json:"totalTime"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ExtractedRecipe is the recipe section of the worker result
type ExtractedRecipe struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Servings    string       `json:"servings"`
	TotalTime   string       `json:"total_time"`
	Difficulty  string       `json:"difficulty"`
	Ingredients []Ingredient `json:"ingredients"`
	Steps       []RecipeStep `json:"steps"`
	Tips        []string     `json:"tips"`
}

// ResultPayload is the final result of one extraction job
type ResultPayload struct {
	Success            bool             `json:"success"`
	ElapsedTime        float64          `json:"elapsedTime"`
	InputSegmentsCount int              `json:"inputSegmentsCount"`
	Recipe             *ExtractedRecipe `json:"recipe"`
	VideoInfo          *VideoInfo       `json:"video_info"`
}

// ToRecipe convert the extracted result into a recipe for the owner
func (p ResultPayload) ToRecipe(owner string, createdAt time.Time) Recipe {
	recipe := Recipe{
		Owner:       owner,
		Ingredients: []Ingredient{},
		Steps:       []RecipeStep{},
		Tips:        []string{},
		CreatedAt:   createdAt,
	}
	if p.Recipe != nil {
		recipe.Title = p.Recipe.Title
		recipe.Description = p.Recipe.Description
		recipe.Servings = p.Recipe.Servings
		recipe.TotalTime = p.Recipe.TotalTime
		recipe.Difficulty = p.Recipe.Difficulty
		recipe.Ingredients = append(recipe.Ingredients, p.Recipe.Ingredients...)
		recipe.Steps = append(recipe.Steps, p.Recipe.Steps...)
		recipe.Tips = append(recipe.Tips, p.Recipe.Tips...)
	}
	if p.VideoInfo != nil {
		video := *p.VideoInfo
		recipe.Video = &video
	}
	return recipe
}

// Summary get the list view of the recipe
func (r Recipe) Summary() RecipeSummary {
	return RecipeSummary{
		ID:         r.ID,
		Title:      r.Title,
		Difficulty: r.Difficulty,
		TotalTime:  r.TotalTime,
		CreatedAt:  r.CreatedAt,
	}
}

// ===============================================================================
// Upload

// UploadURLRequest is the request for a signed upload URL
type UploadURLRequest struct {
	FileName    string `json:"fileName" validate:"required"`
	ContentType string `json:"contentType" validate:"required"`
}

// UploadURL is an issued signed upload URL pair
type UploadURL struct {
	// UploadURL is where the client PUTs the object
	UploadURL string `json:"uploadUrl"`
	// FileURL is where the object can be read after upload
	FileURL string `json:"fileUrl"`
	// ExpiresAt is when UploadURL stops being accepted
	ExpiresAt time.Time `json:"expiresAt"`
}
