// Package schema defines the canonical post, comment, attachment and profile
// shapes shared by the local cache, the remote gateway and the sync core.
//
// # Overview
//
// Posts are stored in the local cache as one JSON array:
//
//	[
//	  {
//	    "id": "5b0c...",
//	    "content": "Calc study group\nThursday 6pm, library 3rd floor",
//	    "createdAt": "2026-01-10T07:36:29Z",
//	    "user": {"id": "u1", "name": "Ana", "major": "Math", "semester": "4"},
//	    "files": [{"id": "f_5b0c...", "type": "pdf", "url": "https://..."}],
//	    "likes": 1,
//	    "likedBy": ["u2"],
//	    "comments": 0,
//	    "commentsList": [],
//	    "tag": "Math"
//	  }
//	]
//
// # Invariants
//
//   - Likes always equals len(LikedBy); liker keys are unique
//   - Comments always equals len(CommentsList)
//   - The author snapshot is denormalized at write time and patched in bulk
//     after a profile edit
//
// Normalize restores the counters from the collections. Callers never
// increment or decrement the counters directly.
package schema
