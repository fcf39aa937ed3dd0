// Package heresphere provides the JSON types of the HereSphere web API.
//
// HereSphere is a VR video player that browses remote libraries through a
// small JSON protocol. Every endpoint is a POST whose body carries the
// player's stored credentials, and every response carries the
// HereSphere-JSON-Version header.
//
// # Endpoints
//
// A server exposes three kinds of documents:
//
//   - an Index listing named libraries of video links,
//   - a Scan listing flattened metadata for every video,
//   - a VideoData document per video link.
//
// When VideoData carries an EventServer URL, the player posts Event documents
// to it as playback opens, plays, pauses and closes.
//
// # Basic Usage
//
//	w.Header().Set(heresphere.HeaderVersion, heresphere.Version)
//	json.NewEncoder(w).Encode(heresphere.Index{
//		Access:  heresphere.AccessMember,
//		Library: []heresphere.Library{{Name: "Library", List: links}},
//	})
package heresphere
