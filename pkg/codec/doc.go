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

// Package codec translates between MongoDB native values and the tagged JSON
// wire format used by the console:
//
//	{"$type": "ObjectId", "$value": "<24 hex characters>"}
//	{"$type": "Date",     "$value": "<ISO-8601>"}
//	{"$type": "RegExp",   "$value": {"$pattern": "...", "$flags": "..."}}
//
// Everything else is plain JSON. Objects keep their key order on both sides:
// native documents are bson.D, wire objects are Object.
//
// Only the three tags above are modeled. Binary data, 64-bit integers and
// decimals pass through as opaque values and cannot be edited type-safely.
// Envelopes with any other $type are returned untouched by Decode so newer
// clients can send tags this version does not know.
package codec
