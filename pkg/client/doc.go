// Package client provides a Go SDK for the job runner API.
//
// The client wraps every API operation in a typed method and adds a
// WebSocket consumer for the real-time task event feed.
//
// # Basic Usage
//
//	c := client.New("http://localhost:8000")
//
//	if err := c.Signup(ctx, "alice", "password123"); err != nil {
//	    log.Fatal(err)
//	}
//	if _, err := c.Login(ctx, "alice", "password123"); err != nil {
//	    log.Fatal(err)
//	}
//
//	// Submit a task
//	tasks, err := c.CreateTask(ctx, &client.CreateTaskRequest{
//	    InputData: "hello world",
//	})
//
// # WebSocket Events
//
//	events, err := c.StreamEvents(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for event := range events {
//	    fmt.Printf("Event: %s\n", event.Type)
//	}
//
// # Configuration
//
// The client supports functional options:
//
//	c := client.New("http://localhost:8000",
//	    client.WithToken(token),
//	    client.WithTimeout(30*time.Second),
//	)
package client
