// Copyright 2025 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package store_test

import (
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/docconsole/pkg/store"
)

var _ = Describe("Error kinds", func() {
	It("survives wrapping", func() {
		base := &store.Error{Err: errors.New("not authorized on admin"), Kind: store.KindAuthorization, Code: 13, Name: "Unauthorized"}
		wrapped := fmt.Errorf("listing databases: %w", base)

		Expect(store.KindOf(wrapped)).To(Equal(store.KindAuthorization))
		Expect(store.IsKind(wrapped, store.KindAuthorization)).To(BeTrue())
		Expect(store.IsKind(wrapped, store.KindNetwork)).To(BeFalse())

		code, name := store.CodeOf(wrapped)
		Expect(code).To(Equal(int32(13)))
		Expect(name).To(Equal("Unauthorized"))
		Expect(wrapped.Error()).To(Equal("listing databases: not authorized on admin"))
	})

	It("defaults to KindOther", func() {
		Expect(store.KindOf(errors.New("boom"))).To(Equal(store.KindOther))
		Expect(store.KindOf(nil)).To(Equal(store.KindOther))
	})

	It("keeps nil errors nil", func() {
		Expect(store.NewError(store.KindTimeout, nil)).To(BeNil())
	})

	It("formats new errors", func() {
		err := store.Errorf(store.KindNotFound, "database %q does not exist", "shop")
		Expect(err).To(MatchError(`database "shop" does not exist`))
		Expect(store.IsKind(err, store.KindNotFound)).To(BeTrue())
		Expect(store.KindNotFound.String()).To(Equal("not found"))
	})
})
