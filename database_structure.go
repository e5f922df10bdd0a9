package garden

var (
	DatabaseStructure = []string{
		"INVALID SQL, index 0 is not allowed for database updated",

		"CREATE TABLE IF NOT EXISTS `gardens` (`id` bigint(20) UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY, `user_id` bigint(20) UNSIGNED NOT NULL, `name` varchar(256) NOT NULL, `auto_mode` TINYINT NOT NULL DEFAULT 0, `has_camera` TINYINT NOT NULL DEFAULT 0, `created` timestamp NOT NULL DEFAULT current_timestamp()) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;",
		"ALTER TABLE `gardens` ADD `temperature_min` DOUBLE NULL, ADD `temperature_max` DOUBLE NULL, ADD `humidity_min` DOUBLE NULL, ADD `humidity_max` DOUBLE NULL, ADD `light_min` DOUBLE NULL, ADD `light_max` DOUBLE NULL, ADD `soil_min` DOUBLE NULL, ADD `soil_max` DOUBLE NULL;",
		"CREATE TABLE IF NOT EXISTS `devices` (`id` bigint(20) UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY, `serial` varchar(128) NOT NULL, `kind` varchar(32) NOT NULL, `garden_id` bigint(20) UNSIGNED NOT NULL, `online` TINYINT NOT NULL DEFAULT 0, `last_seen_at` timestamp NULL, `last_disconnected_at` timestamp NULL) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;",
		"ALTER TABLE `devices` ADD UNIQUE KEY `device_serial` (`serial`), ADD UNIQUE KEY `device_garden_kind` (`garden_id`,`kind`), ADD KEY `device_online` (`online`);",
		"ALTER TABLE `devices` ADD CONSTRAINT `devices_garden_id_lock` FOREIGN KEY (`garden_id`) REFERENCES `gardens` (`id`);",
		"CREATE TABLE IF NOT EXISTS `command_records` (`id` bigint(20) UNSIGNED NOT NULL PRIMARY KEY, `garden_id` bigint(20) UNSIGNED NOT NULL, `serial` varchar(128) NOT NULL, `channel` varchar(32) NOT NULL, `action` varchar(32) NOT NULL, `actor_id` bigint(20) UNSIGNED NULL, `outcome` varchar(32) NOT NULL, `created` timestamp NOT NULL DEFAULT current_timestamp(), KEY `command_garden` (`garden_id`)) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;",
		"CREATE TABLE IF NOT EXISTS `garden_logs` (`id` bigint(20) UNSIGNED NOT NULL PRIMARY KEY, `garden_id` bigint(20) UNSIGNED NOT NULL, `serial` varchar(128) NOT NULL, `source` varchar(16) NOT NULL, `level` varchar(16) NOT NULL, `message` text NOT NULL, `timestamp` timestamp NOT NULL DEFAULT current_timestamp(), KEY `log_garden` (`garden_id`)) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;",
		"CREATE TABLE IF NOT EXISTS `images` (`id` bigint(20) UNSIGNED NOT NULL PRIMARY KEY, `garden_id` bigint(20) UNSIGNED NOT NULL, `url` varchar(1024) NOT NULL, `thumbnail_url` varchar(1024) NULL, `created` timestamp NOT NULL DEFAULT current_timestamp(), KEY `image_garden` (`garden_id`)) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;",
		"CREATE TABLE IF NOT EXISTS `notifications` (`id` bigint(20) UNSIGNED NOT NULL PRIMARY KEY, `garden_id` bigint(20) UNSIGNED NOT NULL, `user_id` bigint(20) UNSIGNED NULL, `kind` varchar(32) NOT NULL, `title` varchar(256) NOT NULL, `message` text NOT NULL, `severity` varchar(16) NOT NULL, `is_read` TINYINT NOT NULL DEFAULT 0, `created` timestamp NOT NULL DEFAULT current_timestamp(), KEY `notification_user` (`user_id`)) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;",
		"CREATE TABLE IF NOT EXISTS `telemetry_samples` (`id` bigint(20) UNSIGNED NOT NULL PRIMARY KEY, `garden_id` bigint(20) UNSIGNED NOT NULL, `timestamp` timestamp NOT NULL, `temperature` DOUBLE NOT NULL, `humidity` DOUBLE NOT NULL, `light` DOUBLE NOT NULL, `soil` DOUBLE NOT NULL, `fan` TINYINT NOT NULL, `lamp` TINYINT NOT NULL, `pump` TINYINT NOT NULL, `heater` TINYINT NOT NULL, `auto_mode` TINYINT NOT NULL, KEY `sample_garden_time` (`garden_id`,`timestamp`)) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;",
		"CREATE TABLE IF NOT EXISTS `api_keys` (`id` bigint(20) UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY, `token` varchar(256) NOT NULL, `expiration_time` timestamp NOT NULL, `user_id` bigint(20) UNSIGNED NOT NULL, UNIQUE KEY `api_key_token` (`token`)) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;",
	}

	// CassandraStructure is applied with garden-helper -cmd cassandra-create-sample-table.
	CassandraStructure = []string{
		"CREATE TABLE IF NOT EXISTS samples_by_garden (garden_id bigint, timestamp timestamp, id bigint, temperature double, humidity double, light double, soil double, fan boolean, lamp boolean, pump boolean, heater boolean, auto_mode boolean, PRIMARY KEY ((garden_id), timestamp, id)) WITH CLUSTERING ORDER BY (timestamp DESC, id DESC);",
	}
)
