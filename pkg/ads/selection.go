// Copyright 2023, DASH-Industry Forum. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package ads

import "sort"

// SelectMediaFiles picks the playable variants of a creative given a
// bandwidth estimate in kbps. Only "video/mp4" files are considered.
// Within those, files need a non-empty URL and either no declared
// bitrate or one below the estimate; if that leaves nothing, the full
// mp4 set is kept so that a playable-type file always yields a
// candidate. The result is sorted ascending by bitrate, leaving files
// without a declared bitrate in place. Index 0 is what gets played:
// lowest qualifying bitrate to favor reliability over quality.
func SelectMediaFiles(files []MediaFile, bandwidthKbps int) []MediaFile {
	var playable []MediaFile
	for _, f := range files {
		if f.MIMEType == playableMimeType {
			playable = append(playable, f)
		}
	}
	var candidates []MediaFile
	for _, f := range playable {
		if f.FileURL != "" && (f.Bitrate == 0 || f.Bitrate < bandwidthKbps) {
			candidates = append(candidates, f)
		}
	}
	if len(candidates) == 0 {
		candidates = playable
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Bitrate == 0 || b.Bitrate == 0 {
			return false
		}
		return a.Bitrate < b.Bitrate
	})
	return candidates
}
