package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stormnet/storm-go/chunking"
	"github.com/stormnet/storm-go/storm"
)

func splitCmd(c *cli) *cobra.Command {
	var (
		mime    string
		info    string
		topic   string
		appName string
	)

	cmd := &cobra.Command{
		Use:   "split <file>",
		Short: "Split a file into chunks and store it",
		Long: `Split a file with the configured chunker, store the chunks and the
container and print the container id. With --topic, also store a topic
attaching the container, through which peers may pull it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			container, chunks, err := c.splitFile(args[0], mime, info)
			if err != nil {
				return err
			}

			store, err := c.openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			for _, ch := range chunks {
				if _, err := store.PutChunk(ch); err != nil {
					return err
				}
			}
			cid, err := store.PutContainer(container)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "container %s\n", cid.Bech32())

			if topic != "" {
				app, err := storm.ParseApp(appName)
				if err != nil {
					return err
				}
				t, err := storm.NewTopic([]byte(topic), cid)
				if err != nil {
					return err
				}
				tid, err := store.PutTopic(app, t)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.out, "topic %s\n", tid)
			}

			c.log.Info("file stored",
				zap.String("file", args[0]),
				zap.Stringer("container", cid),
				zap.Int("chunks", len(chunks)),
				zap.Uint64("size", container.Size))
			return nil
		},
	}

	cmd.Flags().StringVar(&mime, "mime", "", "MIME type recorded in the container")
	cmd.Flags().StringVar(&info, "info", "", "description recorded in the container")
	cmd.Flags().StringVar(&topic, "topic", "", "store a topic with this body attaching the container")
	cmd.Flags().StringVar(&appName, "app", "storage", "application of the topic")
	return cmd
}

func idCmd(c *cli) *cobra.Command {
	var mime, info string

	cmd := &cobra.Command{
		Use:   "id <file>",
		Short: "Print the chunk and container ids of a file without storing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			container, chunks, err := c.splitFile(args[0], mime, info)
			if err != nil {
				return err
			}
			for _, ch := range chunks {
				fmt.Fprintf(c.out, "chunk %s %d\n", ch.ID(), ch.Len())
			}
			fmt.Fprintf(c.out, "container %s\n", container.ID().Bech32())
			fmt.Fprintf(c.out, "size %d\n", container.Size)
			return nil
		},
	}

	cmd.Flags().StringVar(&mime, "mime", "", "MIME type recorded in the container")
	cmd.Flags().StringVar(&info, "info", "", "description recorded in the container")
	return cmd
}

func (c *cli) splitFile(path, mime, info string) (*storm.Container, []storm.Chunk, error) {
	policy, err := chunking.ParsePolicy(c.cfg.Chunker)
	if err != nil {
		return nil, nil, err
	}
	var opts []storm.ContainerOption
	if mime != "" {
		opts = append(opts, storm.WithMIME(mime))
	}
	if info != "" {
		opts = append(opts, storm.WithInfo(info))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = f.Close() }()
	return chunking.Split(f, policy, c.cfg.ChunkSize, opts...)
}
