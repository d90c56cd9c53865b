package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"fedchat/federation"
)

// runCommandLoop drives the server's public operation surface from
// stdin until the context is cancelled or stdin closes.
func runCommandLoop(ctx context.Context, server *federation.Server) {
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				<-ctx.Done()
				return
			}
			if quit := runCommand(server, strings.Fields(line)); quit {
				return
			}
		}
	}
}

func runCommand(server *federation.Server, args []string) bool {
	if len(args) == 0 {
		return false
	}

	switch args[0] {
	case "help":
		printHelp()
	case "quit", "exit":
		return true
	case "pair":
		if len(args) != 3 {
			fmt.Println("usage: pair <address> <port>")
			return false
		}
		port, err := strconv.ParseUint(args[2], 10, 16)
		if err != nil {
			fmt.Println("invalid port:", args[2])
			return false
		}
		if server.SendPairRequest(args[1], uint16(port)) {
			fmt.Println("pair request sent")
		} else {
			fmt.Println("pair request not sent")
		}
	case "accept", "reject":
		if len(args) != 2 {
			fmt.Printf("usage: %s <peer-id>\n", args[0])
			return false
		}
		if server.RespondToPairRequest(args[1], args[0] == "accept") {
			fmt.Println("ok")
		} else {
			fmt.Println("no such pending pair request")
		}
	case "pending":
		for _, req := range server.PendingPairRequests() {
			fmt.Printf("%s  %q  %s:%d\n", req.PeerID, req.Name, req.Address, req.Port)
		}
	case "peers":
		for _, id := range server.ConnectedPeers() {
			fmt.Println(id)
		}
	case "adduser":
		if len(args) < 2 {
			fmt.Println("usage: adduser <name> [admin]")
			return false
		}
		admin := len(args) > 2 && args[2] == "admin"
		if u := server.CreateUser(args[1], admin); u != nil {
			fmt.Println("created user", u.ID)
		} else {
			fmt.Println("username taken")
		}
	case "login", "logout":
		if len(args) != 2 {
			fmt.Printf("usage: %s <user-id>\n", args[0])
			return false
		}
		ok := false
		if args[0] == "login" {
			ok = server.LoginUser(args[1])
		} else {
			ok = server.LogoutUser(args[1])
		}
		fmt.Println(ok)
	case "addchannel":
		if len(args) < 2 {
			fmt.Println("usage: addchannel <name> [admin|private]")
			return false
		}
		adminOnly := len(args) > 2 && args[2] == "admin"
		private := len(args) > 2 && args[2] == "private"
		if ch := server.CreateChannel(args[1], adminOnly, private); ch != nil {
			fmt.Println("created channel", ch.ID)
		} else {
			fmt.Println("channel name taken")
		}
	case "say":
		if len(args) < 4 {
			fmt.Println("usage: say <user-id> <channel-id> <text...>")
			return false
		}
		if m := server.SendMessage(args[1], args[2], strings.Join(args[3:], " ")); m != nil {
			fmt.Println("sent", m.ID)
		} else {
			fmt.Println("rejected")
		}
	case "history":
		if len(args) != 2 {
			fmt.Println("usage: history <channel-id>")
			return false
		}
		for _, m := range server.GetMessages(args[1], time.Now().UnixMilli(), 0) {
			fmt.Printf("[%d] %s: %s\n", m.Timestamp, m.UserID, m.Content)
		}
	case "who":
		if len(args) != 2 {
			fmt.Println("usage: who <channel-id>")
			return false
		}
		for _, u := range server.GetOnlineUsers(args[1]) {
			fmt.Printf("%s (%s)\n", u.Username, u.ID)
		}
	default:
		fmt.Println("unknown command:", args[0])
	}
	return false
}

func printHelp() {
	fmt.Println(`commands:
  pair <address> <port>           send a pair request
  pending                         list inbound pair requests
  accept <peer-id>                accept an inbound pair request
  reject <peer-id>                reject an inbound pair request
  peers                           list connected peers
  adduser <name> [admin]          create a local user
  login <user-id>                 mark a user online
  logout <user-id>                mark a user offline
  addchannel <name> [admin|private]
  say <user-id> <channel-id> <text...>
  history <channel-id>            print channel history
  who <channel-id>                online users visible in a channel
  quit`)
}
