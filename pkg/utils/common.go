/*
Copyright © 2025 The kubernix authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package utils

import (
	"fmt"
)

// ExecuteOnExistence executes the function fn if the file existence is the
// one given by the parameter.
func ExecuteOnExistence(file string, existence bool, fn func() error) error {
	exists, err := FS.Exists(file)
	if err != nil {
		return fmt.Errorf("error while checking if %s exists: %w", file, err)
	}

	if exists == existence {
		return fn()
	}
	return nil
}

// ExecuteIfNotExist executes the function fn if the file
// doesn't exist.
func ExecuteIfNotExist(file string, fn func() error) error {
	return ExecuteOnExistence(file, false, fn)
}

// ExecuteIfExist executes the function fn if the file
// exists.
func ExecuteIfExist(file string, fn func() error) error {
	return ExecuteOnExistence(file, true, fn)
}
